// Package usersink provides go-users compatible activity sinks for content
// saves.
package usersink

import (
	"context"
	"slices"
	"sync"

	usertypes "github.com/goliatone/go-users/pkg/types"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

var (
	_ interfaces.ActivitySink = (*LogSink)(nil)
	_ interfaces.ActivitySink = (*Recorder)(nil)
)

// LogSink writes each activity record as one structured log line.
type LogSink struct {
	Logger interfaces.Logger
}

func (s LogSink) Log(ctx context.Context, record usertypes.ActivityRecord) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.WithContext(ctx).Info("activity.recorded",
		"verb", record.Verb,
		"object_type", record.ObjectType,
		"object_id", record.ObjectID,
		"actor_id", record.ActorID.String(),
		"channel", record.Channel,
		"data", record.Data,
	)
	return nil
}

// Recorder keeps records in memory, optionally forwarding to Next.
type Recorder struct {
	Next interfaces.ActivitySink

	mu      sync.Mutex
	records []usertypes.ActivityRecord
}

func (r *Recorder) Log(ctx context.Context, record usertypes.ActivityRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	if r.Next != nil {
		return r.Next.Log(ctx, record)
	}
	return nil
}

// Records returns a copy of everything logged so far.
func (r *Recorder) Records() []usertypes.ActivityRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}
