package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Summary is a journal folded into counts. Outstanding lists ids dispatched
// but neither resolved nor abandoned, which means the process stopped while
// they were in flight.
type Summary struct {
	JournalID   string          `json:"journal_id"`
	LastSeq     int64           `json:"last_seq"`
	Dispatched  map[string]int  `json:"dispatched"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Stale       int             `json:"stale"`
	Abandoned   int             `json:"abandoned"`
	Outstanding []int64         `json:"outstanding"`
	SessionSeq  int64           `json:"session_seq,omitempty"`
	Session     json.RawMessage `json:"session,omitempty"`
	// SinceSession counts events recorded after the latest session snapshot.
	SinceSession int `json:"since_session"`
}

type callEvent struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Success bool   `json:"success"`
}

// Replay reads every event of journalID and the latest session snapshot.
func Replay(ctx context.Context, st Store, journalID string) (Summary, error) {
	if journalID == "" {
		return Summary{}, errors.New("journal id is empty")
	}
	sum := Summary{JournalID: journalID, Dispatched: map[string]int{}, Outstanding: []int64{}}

	sn, err := st.LoadLatestSnapshot(ctx, journalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Summary{}, fmt.Errorf("load session snapshot: %w", err)
	case len(sn.State) > 0:
		sum.Session = sn.State
		sum.SessionSeq = sn.UptoSeq
	}

	events, err := st.ListEvents(ctx, journalID, 0, 0)
	if err != nil {
		return Summary{}, err
	}
	open := map[int64]bool{}
	for _, er := range events {
		var ev callEvent
		if len(er.Payload) > 0 {
			if err := json.Unmarshal(er.Payload, &ev); err != nil {
				return Summary{}, fmt.Errorf("event %d: %w", er.Seq, err)
			}
		}
		switch er.Type {
		case EventCallDispatched:
			sum.Dispatched[ev.Kind]++
			open[ev.ID] = true
		case EventCallResolved:
			if ev.Success {
				sum.Succeeded++
			} else {
				sum.Failed++
			}
			delete(open, ev.ID)
		case EventCallStale:
			sum.Stale++
		case EventCallAbandoned:
			sum.Abandoned++
			delete(open, ev.ID)
		}
		if sum.Session != nil && er.Seq > sum.SessionSeq {
			sum.SinceSession++
		}
		sum.LastSeq = er.Seq
	}
	for id := range open {
		sum.Outstanding = append(sum.Outstanding, id)
	}
	slices.Sort(sum.Outstanding)
	return sum, nil
}
