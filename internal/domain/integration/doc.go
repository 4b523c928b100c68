// Package integration contains the storefront-facing side of the sync context.
//
// Key concepts:
//   - OrderSnapshot / ReturnSnapshot: immutable representations of commercial
//     events as produced by the storefront platform
//   - PlatformClient: port interface for querying the storefront and writing
//     back sync markers (tags)
//   - SyncMarker: the idempotency tag attached to an external record after a
//     workflow step succeeds or terminally fails
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
