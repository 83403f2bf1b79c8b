package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogclient/internal/common"
)

type mockMessageConsumer struct {
	mock.Mock
	msgs chan amqp.Delivery
}

func (m *mockMessageConsumer) Consume(key common.BindingKey, exchange common.Exchange) (<-chan amqp.Delivery, error) {
	args := m.Called(key, exchange)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return m.msgs, nil
}

type mockMessageProducer struct {
	mock.Mock
}

func (m *mockMessageProducer) Publish(ctx context.Context, msg []byte, key common.BindingKey, exchange common.Exchange) error {
	args := m.Called(ctx, msg, key, exchange)
	return args.Error(0)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func event(t *testing.T, origin string) amqp.Delivery {
	t.Helper()

	body, err := json.Marshal(ChangeEvent{Origin: origin, At: time.Now()})
	require.NoError(t, err)

	return amqp.Delivery{Body: body}
}

func TestListener_InvalidatesOnForeignEvents(t *testing.T) {
	mc := &mockMessageConsumer{msgs: make(chan amqp.Delivery)}
	mc.On("Consume", common.BlogChangedKey, common.BlogExchange).Return(nil)

	target := &countingInvalidator{}
	l := NewListener(mc, target, "me", nil)
	require.NoError(t, l.Start())

	mc.msgs <- event(t, "someone-else")
	mc.msgs <- event(t, "me")
	mc.msgs <- amqp.Delivery{Body: []byte("not json")}
	mc.msgs <- event(t, "another")
	close(mc.msgs)

	l.Close()

	assert.Equal(t, 2, target.count())
	mc.AssertExpectations(t)
}

func TestListener_StartFailure(t *testing.T) {
	mc := &mockMessageConsumer{}
	mc.On("Consume", common.BlogChangedKey, common.BlogExchange).Return(errors.New("channel closed"))

	l := NewListener(mc, &countingInvalidator{}, "me", nil)
	assert.Error(t, l.Start())

	l.Close()
}

func TestBroadcaster_Invalidate(t *testing.T) {
	mp := new(mockMessageProducer)
	mp.On("Publish", mock.Anything, mock.MatchedBy(func(msg []byte) bool {
		var e ChangeEvent
		return json.Unmarshal(msg, &e) == nil && e.Origin == "me"
	}), common.BlogChangedKey, common.BlogExchange).Return(nil).Once()

	b := NewBroadcaster(mp, "me")
	require.NoError(t, b.Invalidate(context.Background()))

	mp.AssertExpectations(t)
}

func TestInvalidators(t *testing.T) {
	first := &countingInvalidator{}
	failing := new(mockInvalidator)
	failing.On("Invalidate", mock.Anything).Return(errors.New("broker down"))
	last := &countingInvalidator{}

	err := Invalidators{first, failing, last}.Invalidate(context.Background())
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, last.count())
}

func TestBroadcastReachesOtherListener(t *testing.T) {
	url := common.TestRabbitMQ(t)

	pub, err := common.NewMessageBroker(url)
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })
	require.NoError(t, common.SetupBlogExchange(pub))

	sub, err := common.NewMessageBroker(url)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	target := &countingInvalidator{}
	l := NewListener(sub, target, "process-b", nil)
	require.NoError(t, l.Start())
	t.Cleanup(l.Close)

	require.NoError(t, NewBroadcaster(pub, "process-a").Invalidate(context.Background()))

	assert.Eventually(t, func() bool { return target.count() == 1 }, 10*time.Second, 50*time.Millisecond)
}
