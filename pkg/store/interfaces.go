// Package store defines persistence for the call journal: an append-only log of
// call lifecycle events per bridge instance plus session snapshots.
// Implementations must provide identical semantics across backends.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Journal event types.
const (
	EventCallDispatched = "call_dispatched"
	EventCallResolved   = "call_resolved"
	EventCallStale      = "call_stale"
	EventCallAbandoned  = "call_abandoned"
)

// EventRecord is the persisted representation of a journal event.
// Payload holds the event data as JSON.
type EventRecord struct {
	EventID   string
	JournalID string
	Seq       int64
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// SnapshotRecord stores a session snapshot taken after event UptoSeq.
type SnapshotRecord struct {
	SnapshotID string
	JournalID  string
	UptoSeq    int64
	State      json.RawMessage
	CreatedAt  time.Time
}

// EventStore defines operations for event logs.
type EventStore interface {
	AppendEvent(ctx context.Context, e EventRecord) (EventRecord, error)
	ListEvents(ctx context.Context, journalID string, afterSeq int64, limit int) ([]EventRecord, error)
	LastSeq(ctx context.Context, journalID string) (int64, error)
}

// SnapshotStore defines operations for reading/writing snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s SnapshotRecord) (SnapshotRecord, error)
	LoadLatestSnapshot(ctx context.Context, journalID string) (SnapshotRecord, error)
}

// Store aggregates event and snapshot stores.
type Store interface {
	EventStore
	SnapshotStore
}
