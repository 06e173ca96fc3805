// Package events carries cross-tab learner notifications and the durable
// domain event log.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	KindLogin         Kind = "login"
	KindLogout        Kind = "logout"
	KindProgressSaved Kind = "progress_saved"
)

// Event is a notification scoped to one learner. Origin names the session or
// tab that caused it so subscribers can ignore their own echoes.
type Event struct {
	Kind      Kind      `json:"kind"`
	LearnerID string    `json:"learnerId"`
	Origin    string    `json:"origin,omitempty"`
	Key       string    `json:"key,omitempty"`
	At        time.Time `json:"at"`
}

// Bus fans learner events out to every subscriber of that learner, across
// processes when backed by redis.
type Bus interface {
	Publish(ctx context.Context, learnerID string, e Event) error
	// Subscribe delivers events until ctx ends, then closes the channel.
	Subscribe(ctx context.Context, learnerID string) (<-chan Event, error)
	Close() error
}
