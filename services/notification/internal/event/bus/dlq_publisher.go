package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/messagebus"
)

// DeadLetterMessageType значение message-type для сообщений DLQ
const DeadLetterMessageType = "ordering.messages:DeadLetter"

// DLQPublisher публикует сообщения, которые не удалось обработать, в Dead Letter Queue
type DLQPublisher struct {
	logger    *zap.Logger
	publisher messagebus.Publisher
	subject   string
	now       func() time.Time
}

// NewDLQPublisher создаёт новый DLQ publisher
func NewDLQPublisher(logger *zap.Logger, publisher messagebus.Publisher, subject string) *DLQPublisher {
	return &DLQPublisher{
		logger:    logger,
		publisher: publisher,
		subject:   subject,
		now:       time.Now,
	}
}

// DLQMessage представляет сообщение для DLQ
type DLQMessage struct {
	OriginalSubject   string            `json:"original_subject"`
	OriginalPartition int               `json:"original_partition,omitempty"`
	OriginalOffset    int64             `json:"original_offset,omitempty"`
	OriginalKey       string            `json:"original_key,omitempty"`
	OriginalValue     string            `json:"original_value"`
	OriginalHeaders   map[string]string `json:"original_headers,omitempty"`
	ErrorMessage      string            `json:"error_message"`
	FailedAt          time.Time         `json:"failed_at"`
	MessageType       string            `json:"message_type,omitempty"`
	CorrelationID     string            `json:"correlation_id,omitempty"`
}

// Publish публикует исходное сообщение вместе с причиной ошибки в DLQ
func (p *DLQPublisher) Publish(ctx context.Context, original *messagebus.Message, originalErr error) error {
	errorMsg := ""
	if originalErr != nil {
		errorMsg = originalErr.Error()
	}

	dlqMsg := DLQMessage{
		OriginalSubject:   original.Subject,
		OriginalPartition: original.Partition,
		OriginalOffset:    original.Offset,
		OriginalKey:       string(original.Key),
		OriginalValue:     string(original.Data),
		OriginalHeaders:   original.Headers,
		ErrorMessage:      errorMsg,
		FailedAt:          p.now().UTC(),
		MessageType:       original.Header(messages.HeaderMessageType),
		CorrelationID:     original.Header(messages.HeaderCorrelationID),
	}

	payload, err := json.Marshal(dlqMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	headers := map[string]string{
		messages.HeaderMessageType: DeadLetterMessageType,
		messages.HeaderContentType: messages.ContentTypeJSON,
	}
	if dlqMsg.CorrelationID != "" {
		headers[messages.HeaderCorrelationID] = dlqMsg.CorrelationID
	}

	err = p.publisher.Publish(ctx, p.subject, messagebus.Message{
		Key:     original.Key,
		Data:    payload,
		Headers: headers,
	})
	if err != nil {
		p.logger.Error("failed to publish message to DLQ",
			zap.Error(err),
			zap.String("original_subject", original.Subject),
			zap.Int("original_partition", original.Partition),
			zap.Int64("original_offset", original.Offset),
		)
		return err
	}

	p.logger.Info("message published to DLQ",
		zap.String("original_subject", original.Subject),
		zap.Int("original_partition", original.Partition),
		zap.Int64("original_offset", original.Offset),
		zap.String("error_message", errorMsg),
	)
	return nil
}
