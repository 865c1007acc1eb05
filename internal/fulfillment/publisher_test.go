package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petapt/internal/domain"
)

type stubWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error { return nil }

func TestPublishOrderPlaced_KeyedByOrderID(t *testing.T) {
	w := &stubWriter{}
	p := newKafka(w, nil)

	order := domain.Order{ID: "o-1", Number: "PA-1", TotalCents: 1550, Currency: "EUR",
		Lines: []domain.OrderLine{{ProductID: "p", Quantity: 2, TotalPriceCents: 900}}}
	require.NoError(t, p.PublishOrderPlaced(context.Background(), order))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, EventOrderPlaced, string(w.msgs[0].Headers[0].Value))

	var ev OrderPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "PA-1", ev.Number)
	assert.EqualValues(t, 1550, ev.TotalCents)
	assert.Len(t, ev.Lines, 1)
}

func TestPublishOrderPlaced_BreakerOpensAfterFailures(t *testing.T) {
	boom := errors.New("broker down")
	w := &stubWriter{err: boom}
	p := newKafka(w, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, p.PublishOrderPlaced(ctx, domain.Order{ID: "o"}), boom)
	}
	assert.ErrorIs(t, p.PublishOrderPlaced(ctx, domain.Order{ID: "o"}), ErrUnavailable)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishOrderPlaced(context.Background(), domain.Order{ID: "o"}))
}
