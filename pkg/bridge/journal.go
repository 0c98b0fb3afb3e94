package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
	"github.com/wilhg/y8bridge/pkg/store"
)

const journalTimeout = 2 * time.Second

// journal records call lifecycle events. Write failures are logged and never
// fail the call. A nil *journal records nothing.
type journal struct {
	st  store.Store
	id  string
	log *slog.Logger
}

func newJournal(st store.Store, id string) *journal {
	if id == "" {
		id = uuid.NewString()
	}
	return &journal{st: st, id: id, log: slog.Default()}
}

func (j *journal) dispatched(ctx context.Context, id CallID, kind protocol.RequestKind, payload string) {
	j.append(ctx, store.EventCallDispatched, map[string]any{"id": int64(id), "kind": string(kind), "payload": payload})
}

func (j *journal) resolved(ctx context.Context, id CallID, out codec.Outcome) {
	p := map[string]any{"id": int64(id), "kind": string(out.Kind), "success": out.Success}
	if out.Err != nil {
		p["code"] = errmodel.From(out.Err).Code
	}
	j.append(ctx, store.EventCallResolved, p)
}

func (j *journal) stale(ctx context.Context, id CallID, kind protocol.RequestKind) {
	j.append(ctx, store.EventCallStale, map[string]any{"id": int64(id), "kind": string(kind)})
}

func (j *journal) abandoned(ctx context.Context, id CallID) {
	j.append(ctx, store.EventCallAbandoned, map[string]any{"id": int64(id)})
}

func (j *journal) append(ctx context.Context, typ string, payload map[string]any) {
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	raw, err := json.Marshal(payload)
	if err != nil {
		j.log.Warn("journal encode failed", "type", typ, "error", err)
		return
	}
	if _, err := j.st.AppendEvent(ctx, store.EventRecord{
		EventID:   uuid.NewString(),
		JournalID: j.id,
		Type:      typ,
		Payload:   raw,
	}); err != nil {
		j.log.Warn("journal append failed", "type", typ, "error", err)
	}
}

// snapshot saves the session snapshot taken after the latest event.
// Access tokens are not persisted.
func (j *journal) snapshot(ctx context.Context, a *protocol.Authorisation) {
	if j == nil || a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	redacted := *a
	if a.AuthResponse != nil {
		ar := *a.AuthResponse
		ar.AccessToken = ""
		redacted.AuthResponse = &ar
	}
	raw, err := json.Marshal(redacted)
	if err != nil {
		j.log.Warn("journal encode failed", "type", "snapshot", "error", err)
		return
	}
	seq, err := j.st.LastSeq(ctx, j.id)
	if err != nil {
		j.log.Warn("journal snapshot failed", "error", err)
		return
	}
	if _, err := j.st.SaveSnapshot(ctx, store.SnapshotRecord{
		SnapshotID: uuid.NewString(),
		JournalID:  j.id,
		UptoSeq:    seq,
		State:      raw,
	}); err != nil {
		j.log.Warn("journal snapshot failed", "error", err)
	}
}
