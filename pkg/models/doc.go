// Package models defines the custody domain entities and their typed
// identifiers.
//
// The entities form a strict five-level hierarchy: a Custodian holds
// Portfolios, a Portfolio groups Accounts, and an Account records Positions
// and Transactions. Each child entity carries the identifier of its parent;
// the service layer is responsible for ensuring that reference resolves to a
// live record before any write is accepted, because the underlying document
// store enforces no foreign keys of its own.
//
// Identifiers are UUID-backed typed IDs rather than raw strings. A typed ID
// knows its own table, marshals to a SurrealDB RecordID over CBOR, and to a
// plain UUID string over JSON, so the same model structs travel unchanged
// between the HTTP surface, the event envelopes, and the document store.
package models
