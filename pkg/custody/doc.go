// Package custody implements the custody data service: a hierarchy of
// custodians, portfolios, accounts, positions and transactions persisted in
// a schema-less document store.
//
// The [Service] is the single write path. Every mutation validates its
// input, enforces parent existence against the store, persists the change
// and hands a domain event to the publisher. The store provides no
// cross-collection transactions, so referential integrity is enforced here
// by read-before-write checks, and [Service.CheckConsistency] exists to
// detect the orphans a crash can leave behind.
//
// The package also carries the application shell: [Parse] turns command
// line arguments into a [Command], [App] wires the SurrealDB store and the
// RabbitMQ publisher, and [Main] ties them together for the binary.
package custody
