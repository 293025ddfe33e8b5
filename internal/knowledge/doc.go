// Package knowledge provides vector similarity search over capture content.
//
// Capture text is split into chunks, embedded, and stored in PostgreSQL with
// pgvector. Search is always restricted to one user and to an explicit set of
// capture identifiers (the resolved scope); the store never ranks across
// users or outside the caller's scope.
//
// The aggregation layer treats this package as a black-box ranking function.
// Retrieval failures are expected to be survivable: callers degrade to an
// empty fragment list rather than failing the request.
package knowledge
