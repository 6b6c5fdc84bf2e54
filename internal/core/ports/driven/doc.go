// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the record store, the external search
// index, blob storage, AI services, format extraction, chunking, and the
// background task queue. Core services depend only on these interfaces.
package driven
