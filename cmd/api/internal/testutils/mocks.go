package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/protocol"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex

	// When Hold is set, the first SendBytes closes Held and waits on Hold
	// before recording its message.
	Hold chan struct{}
	Held chan struct{}
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	hold := m.Hold
	m.Hold = nil
	m.Mu.Unlock()
	if hold != nil {
		close(m.Held)
		<-hold
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) Raw() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

// MockTriggerSource hands out one in-memory channel per subscribed name.
type MockTriggerSource struct {
	Err      error
	Mu       sync.Mutex
	channels map[string]chan string
}

func NewMockTriggerSource() *MockTriggerSource {
	return &MockTriggerSource{channels: make(map[string]chan string)}
}

func (m *MockTriggerSource) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.channel(channel), nil
}

// Publish blocks until the subscriber has received payload.
func (m *MockTriggerSource) Publish(channel, payload string) {
	m.channel(channel) <- payload
}

// End closes the channel as if the subscription had dropped.
func (m *MockTriggerSource) End(channel string) {
	close(m.channel(channel))
}

func (m *MockTriggerSource) channel(name string) chan string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	ch, ok := m.channels[name]
	if !ok {
		ch = make(chan string)
		m.channels[name] = ch
	}
	return ch
}

// MockPriceFeed serves a fixed version and price list.
type MockPriceFeed struct {
	Version    string
	Prices     []models.ItemPrice
	VersionErr error
	PricesErr  error

	Mu    sync.Mutex
	Calls int
}

func (m *MockPriceFeed) ResolveVersion(ctx context.Context) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Version, m.VersionErr
}

// FetchItemPrices returns a copy so callers may mutate the result.
func (m *MockPriceFeed) FetchItemPrices(ctx context.Context, version string) ([]models.ItemPrice, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	if m.PricesErr != nil {
		return nil, m.PricesErr
	}
	return append([]models.ItemPrice(nil), m.Prices...), nil
}

func (m *MockPriceFeed) SetPricesErr(err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.PricesErr = err
}

// MockOverrideSource serves a fixed override map.
type MockOverrideSource struct {
	Overrides models.PriceOverrides
	Err       error
}

func (m *MockOverrideSource) FetchPriceOverrides(ctx context.Context) (models.PriceOverrides, error) {
	return m.Overrides, m.Err
}

// MockWorldSource serves a fixed world list.
type MockWorldSource struct {
	Worlds []models.World
	Err    error
	Mu     sync.Mutex
}

func (m *MockWorldSource) FetchWorlds(ctx context.Context) ([]models.World, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Worlds, m.Err
}

// MockKafkaReader replays Messages, then either blocks until the context is
// done (Block) or reports end of stream.
type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Block    bool
	Mu       sync.Mutex
	closed   bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	if m.closed {
		m.Mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if m.Index < len(m.Messages) {
		msg := m.Messages[m.Index]
		m.Index++
		m.Mu.Unlock()
		return msg, nil
	}
	m.Mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	return kafka.Message{}, io.EOF
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockKafkaReader) IsClosed() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.closed
}
