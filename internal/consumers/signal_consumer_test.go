package consumers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
)

type fakeRegistrar struct {
	created []signal.CreateParams
	err     error
}

func (r *fakeRegistrar) Create(ctx context.Context, params signal.CreateParams) (*signal.Signal, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.created = append(r.created, params)
	return &signal.Signal{
		ID:    uuid.New(),
		Type:  params.Type,
		Token: params.Token,
	}, nil
}

func TestSignalConsumer_HandleMessage(t *testing.T) {
	registrar := &fakeRegistrar{}
	c := NewSignalConsumer(nil, registrar)

	msg := kafkago.Message{Value: []byte(`{
		"type": "BUY",
		"token": "BTC",
		"price": "45000",
		"risk_level": "medium",
		"window_seconds": 900
	}`)}

	require.NoError(t, c.handleMessage(context.Background(), msg))

	require.Len(t, registrar.created, 1)
	params := registrar.created[0]
	assert.Equal(t, signal.TypeBuy, params.Type)
	assert.Equal(t, "BTC", params.Token)
	assert.Equal(t, signal.RiskMedium, params.RiskLevel)
	assert.Equal(t, 15*time.Minute, params.Window)
}

func TestSignalConsumer_DefaultWindow(t *testing.T) {
	registrar := &fakeRegistrar{}
	c := NewSignalConsumer(nil, registrar)

	msg := kafkago.Message{Value: []byte(`{
		"type": "SELL",
		"token": "ETH",
		"price": "3500",
		"risk_level": "low"
	}`)}

	require.NoError(t, c.handleMessage(context.Background(), msg))
	require.Len(t, registrar.created, 1)
	assert.Equal(t, DefaultDecisionWindow, registrar.created[0].Window)
}

func TestSignalConsumer_MalformedPayloadDropped(t *testing.T) {
	registrar := &fakeRegistrar{}
	c := NewSignalConsumer(nil, registrar)

	msg := kafkago.Message{Value: []byte(`not json`)}

	assert.NoError(t, c.handleMessage(context.Background(), msg), "malformed payloads are dropped silently")
	assert.Empty(t, registrar.created)
}

func TestSignalConsumer_InvalidSignalDropped(t *testing.T) {
	registrar := &fakeRegistrar{err: errors.ErrInvalidInput}
	c := NewSignalConsumer(nil, registrar)

	msg := kafkago.Message{Value: []byte(`{"type":"HOLD","token":"BTC","price":"1","risk_level":"medium"}`)}

	assert.NoError(t, c.handleMessage(context.Background(), msg))
}

func TestSignalConsumer_StoreFailurePropagates(t *testing.T) {
	registrar := &fakeRegistrar{err: errors.ErrUnavailable}
	c := NewSignalConsumer(nil, registrar)

	msg := kafkago.Message{Value: []byte(`{"type":"BUY","token":"BTC","price":"1","risk_level":"medium"}`)}

	assert.Error(t, c.handleMessage(context.Background(), msg), "store outages are retried by the broker")
}
