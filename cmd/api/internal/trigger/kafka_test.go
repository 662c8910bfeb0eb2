package trigger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/testutils"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/trigger"
)

func fixedOffset(offset int64) func(ctx context.Context, topic string) (int64, error) {
	return func(ctx context.Context, topic string) (int64, error) { return offset, nil }
}

func TestKafkaSource_ForwardsMessages(t *testing.T) {
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{
		{Value: []byte("refresh 1")},
		{Value: []byte("refresh 2")},
	}}

	var gotTopic string
	var gotOffset int64
	var mu sync.Mutex
	src := trigger.NewKafkaSource([]string{"broker:9092"}, zap.NewNop(),
		trigger.WithOffsetLookup(fixedOffset(42)),
		trigger.WithReaderFactory(func(topic string, offset int64) trigger.KafkaReader {
			mu.Lock()
			gotTopic, gotOffset = topic, offset
			mu.Unlock()
			return reader
		}),
	)

	triggers, err := src.Subscribe(context.Background(), "items_refresh")
	require.NoError(t, err)

	var payloads []string
	for p := range triggers {
		payloads = append(payloads, p)
	}

	require.Equal(t, []string{"refresh 1", "refresh 2"}, payloads)
	mu.Lock()
	require.Equal(t, "items_refresh", gotTopic)
	require.Equal(t, int64(42), gotOffset, "reader must start at the offset pinned by Subscribe")
	mu.Unlock()
	require.True(t, reader.IsClosed(), "reader should be closed when the stream ends")
}

func TestKafkaSource_TopicCheckFailure(t *testing.T) {
	src := trigger.NewKafkaSource([]string{"broker:9092"}, zap.NewNop(),
		trigger.WithOffsetLookup(func(ctx context.Context, topic string) (int64, error) {
			return 0, errors.New("unknown topic")
		}),
	)

	_, err := src.Subscribe(context.Background(), "worlds_refresh")
	var subErr *apperr.SubscribeError
	require.True(t, errors.As(err, &subErr))
	require.Equal(t, "worlds_refresh", subErr.Channel)
}

func TestKafkaSource_StopsOnCancel(t *testing.T) {
	reader := &testutils.MockKafkaReader{Block: true}
	src := trigger.NewKafkaSource(nil, zap.NewNop(),
		trigger.WithOffsetLookup(fixedOffset(0)),
		trigger.WithReaderFactory(func(string, int64) trigger.KafkaReader { return reader }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	triggers, err := src.Subscribe(ctx, "items_refresh")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-triggers:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestKafkaSource_TriggerBeforeFirstReadIsDelivered(t *testing.T) {
	// The message is already in the partition at the pinned offset when the
	// stream goroutine starts reading.
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{{Offset: 7, Value: []byte("early")}}}
	src := trigger.NewKafkaSource(nil, zap.NewNop(),
		trigger.WithOffsetLookup(fixedOffset(7)),
		trigger.WithReaderFactory(func(topic string, offset int64) trigger.KafkaReader {
			require.Equal(t, int64(7), offset)
			return reader
		}),
	)

	triggers, err := src.Subscribe(context.Background(), "worlds_refresh")
	require.NoError(t, err)

	select {
	case p := <-triggers:
		require.Equal(t, "early", p)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger written before the first read was lost")
	}
}
