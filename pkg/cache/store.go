package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no entry exists for a key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is a persisted factory result.
type Entry struct {
	Key     string
	Payload json.RawMessage
	Expiry  time.Time
}

// Expired reports whether the entry is no longer valid at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.Expiry.After(now)
}

// Store persists cache entries. Implementations must be safe for concurrent
// use.
type Store interface {
	// Get returns the entry for key, or ErrNotFound. Expired entries may be
	// returned; the caller checks expiry.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set creates or replaces the entry for e.Key.
	Set(ctx context.Context, e *Entry) error
	// Delete removes the entry for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Purge deletes every entry expired at now and returns how many went.
	Purge(ctx context.Context, now time.Time) (int, error)
	// Clear deletes every entry.
	Clear(ctx context.Context) error
	Close() error
}

// envelope is the serialized form used by stores that keep one blob per entry.
type envelope struct {
	Key     string          `json:"key,omitempty"`
	Expiry  int64           `json:"expiry"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(e *Entry) ([]byte, error) {
	return json.Marshal(envelope{Key: e.Key, Expiry: e.Expiry.UnixMilli(), Payload: e.Payload})
}

func decodeEnvelope(data []byte) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &Entry{Key: env.Key, Payload: env.Payload, Expiry: time.UnixMilli(env.Expiry)}, nil
}
