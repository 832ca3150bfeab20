// Package permission holds the static role to permission model.
//
// # Representation
//
// Permissions are assigned bit positions by a frozen [Registry]; each role
// holds one 64-bit [Mask]. A [Model] is built once and never mutated, so
// lookups take no locks beyond the registry's read lock.
//
// # Architecture boundaries
//
// This package is a pure in-memory lookup with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import the root package, jwt, or session.
//   - Change a role's grants after the Model is built.
package permission
