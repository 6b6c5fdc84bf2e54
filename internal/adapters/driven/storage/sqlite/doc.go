// Package sqlite provides the SQLite-based implementation of the
// document store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It persists
// documents, their chunks, and the search history through a single
// database connection.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.kura/data/metadata.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode. Concurrent writers to the same
// document are serialised by the revision token rather than by locks.
package sqlite
