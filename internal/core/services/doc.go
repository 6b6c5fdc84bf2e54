// Package services contains the core business logic.
//
// Architectural Position: services implement the driving ports and
// depend only on driven ports and domain types. All infrastructure
// (storage, search index, AI endpoints) is injected.
//
// The two main services are IngestOrchestrator, which owns the document
// lifecycle from upload through indexing, and RetrievalService, which
// answers queries against the indexed corpus.
package services
