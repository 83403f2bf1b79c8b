package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sushihentaime/blogclient/internal/common"
)

// ChangeEvent is broadcast after a successful create, update or delete.
type ChangeEvent struct {
	// Origin identifies the publishing process so it can skip its own events.
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Invalidators invalidates each member in turn.
type Invalidators []Invalidator

func (is Invalidators) Invalidate(ctx context.Context) error {
	var errs []error
	for _, i := range is {
		if err := i.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Broadcaster tells other client processes that the blog collection changed.
type Broadcaster struct {
	mb     common.MessageProducer
	origin string
}

func NewBroadcaster(mb common.MessageProducer, origin string) *Broadcaster {
	return &Broadcaster{mb: mb, origin: origin}
}

func (b *Broadcaster) Invalidate(ctx context.Context) error {
	msg, err := json.Marshal(ChangeEvent{Origin: b.origin, At: time.Now().UTC()})
	if err != nil {
		return err
	}

	if err := b.mb.Publish(ctx, msg, common.BlogChangedKey, common.BlogExchange); err != nil {
		return fmt.Errorf("broadcast blog change: %w", err)
	}

	return nil
}

// Listener invalidates target whenever another process broadcasts a change.
type Listener struct {
	mb     common.MessageConsumer
	target Invalidator
	origin string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started atomic.Bool
}

func NewListener(mb common.MessageConsumer, target Invalidator, origin string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		mb:     mb,
		target: target,
		origin: origin,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins consuming change events in the background.
func (l *Listener) Start() error {
	msgs, err := l.mb.Consume(common.BlogChangedKey, common.BlogExchange)
	if err != nil {
		return fmt.Errorf("could not consume blog changes: %w", err)
	}
	l.started.Store(true)

	go func() {
		defer close(l.done)

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event ChangeEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					l.logger.Error("could not unmarshal message", slog.String("error", err.Error()))
					msg.Ack(false)
					continue
				}

				if event.Origin == l.origin {
					msg.Ack(false)
					continue
				}

				if err := l.target.Invalidate(l.ctx); err != nil {
					l.logger.Error("could not invalidate blog mirror", slog.String("error", err.Error()))
					msg.Nack(false, false)
					continue
				}

				l.logger.Info("blog mirror invalidated", slog.String("origin", event.Origin))
				msg.Ack(false)

			case <-l.ctx.Done():
				l.logger.Info("stopping blog change listener due to context cancellation")
				return
			}
		}
	}()

	return nil
}

// Close stops the listener and waits for it to finish.
func (l *Listener) Close() {
	l.cancel()
	if l.started.Load() {
		<-l.done
	}
}
