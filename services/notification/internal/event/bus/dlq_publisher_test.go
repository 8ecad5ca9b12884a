package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/messagebus"
)

type capturePublisher struct {
	mu      sync.Mutex
	subject string
	msgs    []messagebus.Message
	err     error
}

func (p *capturePublisher) Publish(_ context.Context, subject string, msg messagebus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subject = subject
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestDLQPublisher_Publish(t *testing.T) {
	pub := &capturePublisher{}
	dlq := NewDLQPublisher(zap.NewNop(), pub, "ordering.order.dlq")
	dlq.now = func() time.Time { return time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC) }

	original := &messagebus.Message{
		Subject:   "ordering.order",
		Key:       []byte("order-1"),
		Data:      []byte("{broken"),
		Partition: 2,
		Offset:    42,
		Headers: map[string]string{
			messages.HeaderCorrelationID: "cccccccc-cccc-cccc-cccc-cccccccccccc",
			messages.HeaderMessageType:   messages.OrderMessageType,
		},
	}

	require.NoError(t, dlq.Publish(context.Background(), original, errors.New("order message body is not valid json")))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "ordering.order.dlq", pub.subject)

	sent := pub.msgs[0]
	assert.Equal(t, []byte("order-1"), sent.Key)
	assert.Equal(t, DeadLetterMessageType, sent.Headers[messages.HeaderMessageType])
	assert.Equal(t, "cccccccc-cccc-cccc-cccc-cccccccccccc", sent.Headers[messages.HeaderCorrelationID])

	var body DLQMessage
	require.NoError(t, json.Unmarshal(sent.Data, &body))
	assert.Equal(t, "ordering.order", body.OriginalSubject)
	assert.Equal(t, 2, body.OriginalPartition)
	assert.Equal(t, int64(42), body.OriginalOffset)
	assert.Equal(t, "{broken", body.OriginalValue)
	assert.Equal(t, messages.OrderMessageType, body.MessageType)
	assert.Equal(t, "order message body is not valid json", body.ErrorMessage)
}

func TestDLQPublisher_PublishError(t *testing.T) {
	pub := &capturePublisher{err: messagebus.ErrClosed}
	dlq := NewDLQPublisher(zap.NewNop(), pub, "ordering.order.dlq")

	err := dlq.Publish(context.Background(), &messagebus.Message{Subject: "ordering.order"}, nil)
	assert.ErrorIs(t, err, messagebus.ErrClosed)
}
