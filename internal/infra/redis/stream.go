package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// StreamEntry is one event read back from the stream.
type StreamEntry struct {
	ID    string
	Event *domain.SecurityEvent
}

// Publish appends events to the stream in one pipeline, preserving order.
func (c *Client) Publish(ctx context.Context, events []*domain.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, ev := range events {
		values, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		args := &redis.XAddArgs{Stream: c.stream, Values: values}
		if c.maxLen > 0 {
			args.MaxLen = c.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

// Read returns up to count entries after the stream id after ("" or "0" reads
// from the beginning). Entries that fail to decode are skipped.
func (c *Client) Read(ctx context.Context, after string, count int64) ([]StreamEntry, error) {
	start := "-"
	if after != "" && after != "0" {
		start = "(" + after
	}
	msgs, err := c.rdb.XRangeN(ctx, c.stream, start, "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange failed: %w", err)
	}
	out := make([]StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		ev, err := decodeEvent(m.Values)
		if err != nil {
			continue
		}
		out = append(out, StreamEntry{ID: m.ID, Event: ev})
	}
	return out, nil
}

// Len returns the number of entries in the stream.
func (c *Client) Len(ctx context.Context) (int64, error) {
	return c.rdb.XLen(ctx, c.stream).Result()
}

func encodeEvent(ev *domain.SecurityEvent) (map[string]any, error) {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	return map[string]any{
		"id":        ev.ID,
		"type":      string(ev.Type),
		"wallet":    ev.Wallet.Hex(),
		"actor":     ev.Actor.Hex(),
		"details":   string(details),
		"timestamp": strconv.FormatInt(ev.Timestamp, 10),
	}, nil
}

func decodeEvent(values map[string]any) (*domain.SecurityEvent, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	ts, err := strconv.ParseInt(str("timestamp"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	ev := &domain.SecurityEvent{
		ID:        str("id"),
		Type:      domain.EventType(str("type")),
		Wallet:    common.HexToAddress(str("wallet")),
		Actor:     common.HexToAddress(str("actor")),
		Timestamp: ts,
	}
	if d := str("details"); d != "" && d != "null" {
		if err := json.Unmarshal([]byte(d), &ev.Details); err != nil {
			return nil, fmt.Errorf("invalid details: %w", err)
		}
	}
	return ev, nil
}
