// Package persistence provides storage for job postings.
// The only implementation is SQLite (modernc.org/sqlite, pure go) accessed through sqlx,
// running in WAL mode with a single connection so writers never race each other.
// Postings are append-only: the store can create, seed, list and get, never update or delete.
package persistence
