package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/domain"
)

func sampleEvent(id string, ts int64) *domain.SecurityEvent {
	return &domain.SecurityEvent{
		ID:        id,
		Type:      domain.EventTransferExecuted,
		Wallet:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Actor:     common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Details:   map[string]string{"amount": "5", "to": "0x01"},
		Timestamp: ts,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ev := sampleEvent("abc", 1_700_000_000)
	values, err := encodeEvent(ev)
	require.NoError(t, err)

	got, err := decodeEvent(values)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeEventRejectsBadTimestamp(t *testing.T) {
	_, err := decodeEvent(map[string]any{"id": "x", "timestamp": "soon"})
	assert.Error(t, err)
}

func TestDecodeEventWithoutDetails(t *testing.T) {
	ev, err := decodeEvent(map[string]any{"id": "x", "type": "paused", "timestamp": "1", "details": "null"})
	require.NoError(t, err)
	assert.Nil(t, ev.Details)
	assert.Equal(t, domain.EventPaused, ev.Type)
}

func TestPublishAndRead(t *testing.T) {
	url := os.Getenv("WALLETGUARD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WALLETGUARD_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewClient(Config{URL: url, Stream: "walletguard:test:" + time.Now().Format("150405.000000")})
	require.NoError(t, err)
	defer c.Close()
	defer c.rdb.Del(ctx, c.Stream())

	require.NoError(t, c.Publish(ctx, []*domain.SecurityEvent{sampleEvent("a", 1), sampleEvent("b", 2)}))

	entries, err := c.Read(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Event.ID)

	rest, err := c.Read(ctx, entries[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].Event.ID)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
