// Package host defines the boundary to the host document collection: the
// record, card, schema and container value types, and the Collection interface
// covering the CRUD primitives the reconciliation core relies on.
//
// The host application owns record lifecycle (creation, field storage,
// deletion) and id assignment. The core never reaches around this interface.
// Memory provides an in-memory Collection used by tests and tooling.
package host
