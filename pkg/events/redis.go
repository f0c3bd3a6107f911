package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamTTL keeps finished session streams around long enough for the
// frontend to replay them, then lets Redis reclaim them.
const streamTTL = 24 * time.Hour

// StreamKey returns the Redis stream key for a session.
func StreamKey(sessionID string) string {
	return fmt.Sprintf("research:%s:stream", sessionID)
}

// RedisSink appends events to a per-session Redis stream. Each entry has
// a single "event" field holding the JSON-encoded Event.
type RedisSink struct {
	client    *redis.Client
	sessionID string
}

func NewRedisSink(client *redis.Client, sessionID string) *RedisSink {
	return &RedisSink{client: client, sessionID: sessionID}
}

func (s *RedisSink) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := StreamKey(s.sessionID)
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{"event": payload},
	}).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", key, err)
	}

	// Best effort; a missing TTL only delays cleanup.
	_ = s.client.Expire(ctx, key, streamTTL).Err()
	return nil
}

// ReadStream returns all events on a session stream after the given
// stream ID ("0" for the beginning), along with the last entry ID seen.
func ReadStream(ctx context.Context, client *redis.Client, sessionID, afterID string) ([]Event, string, error) {
	start := "-"
	if afterID != "" && afterID != "0" {
		start = "(" + afterID
	} else {
		afterID = "0"
	}
	entries, err := client.XRange(ctx, StreamKey(sessionID), start, "+").Result()
	if err != nil {
		return nil, afterID, fmt.Errorf("failed to read stream: %w", err)
	}

	var out []Event
	lastID := afterID
	for _, entry := range entries {
		raw, ok := entry.Values["event"].(string)
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
		lastID = entry.ID
	}
	return out, lastID, nil
}
