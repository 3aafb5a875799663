// Package scope provides the hierarchical namespace used to segment
// message traffic.
//
// Scopes form a single tree with a fixed root. Every scope is a record in
// an arena owned by a Tree; the Scope handle is a (tree, index) pair, so
// scopes compare by identity rather than by name and parent/child links
// are index relations with no ownership cycles.
//
// A Tree starts with the well-known layout
//
//	root
//	└── core
//	    ├── runtime
//	    └── ui
//
// and additional scopes can be created at runtime as children of any
// existing scope. A scope's parent is fixed at creation and never
// reassigned, which keeps every ancestor chain finite and acyclic.
package scope
