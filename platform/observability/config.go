package observability

import "time"

// Config конфигурация OpenTelemetry (traces + metrics + propagator)
type Config struct {
	// Enabled включить экспорт в OTLP collector
	Enabled bool
	// OTLPEndpoint адрес OTLP gRPC, например "otel-collector:4317"
	OTLPEndpoint string
	// SamplingRatio доля трасс для семплирования (0..1)
	SamplingRatio float64
	// ServiceName имя сервиса (order, notification)
	ServiceName string
	// DeploymentEnvironment окружение (local, docker)
	DeploymentEnvironment string
	// ServiceVersion опционально
	ServiceVersion string
	// MetricInterval период экспорта метрик, default 10s
	MetricInterval time.Duration
}
