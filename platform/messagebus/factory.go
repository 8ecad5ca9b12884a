package messagebus

import (
	"fmt"

	"go.uber.org/zap"
)

// New создаёт шину для cfg.Transport
func New(cfg Config, logger *zap.Logger) (Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("transport", cfg.Transport))

	switch cfg.Transport {
	case TransportKafka:
		return NewKafkaBus(logger, cfg.Kafka, cfg.Concurrency), nil
	case TransportNATS:
		return NewNATSBus(logger, cfg.NATS, cfg.Concurrency)
	case TransportMemory:
		return NewMemoryBus(logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
