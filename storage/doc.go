// Package storage defines the blob Store used to archive run reports.
//
// objectstore.Store is the NATS JetStream implementation; MemoryStore keeps
// objects in process for tests and for runs without NATS.
package storage
