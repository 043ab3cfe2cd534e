// Package outbox provides the SQLite store that receives prepared media.
//
// It implements sending.Confirmer and sending.Notifier: confirmed results
// are persisted with their upload parts, failures are recorded for the
// sender, and albums are saved once every item has media.
//
// The database uses WAL mode for concurrent reads from the HTTP handlers
// while the owner loop writes.
package outbox
