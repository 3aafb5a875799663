// Package payload defines the data carried across the bus and the
// capability interfaces the engine inspects.
//
// Payloads are plain data; the bus never mutates them. The engine only
// cares about three optional capabilities:
//
//   - Timestamped: the payload records when it was created
//   - Addressable: the payload has a message identity and may require a
//     response (request/response correlation)
//   - Scoped: the payload declares a scope and a single-hop propagation
//     policy toward the parent and/or child buses
//
// Two concrete payload kinds exist, mirroring the two bus kinds: Event
// (notification, timestamp only) and Message (addressable, optionally
// requiring a response). Their scoped variants are constructed through a
// Guard, which verifies publish rights for the declared scope before the
// payload ever reaches a bus.
package payload
