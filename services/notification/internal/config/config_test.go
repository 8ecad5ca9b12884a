package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.AppEnv)
	assert.Equal(t, "testing@domain.com", cfg.EmailRecipient)
	assert.Equal(t, AckAlways, cfg.AckPolicy)
	assert.Zero(t, cfg.ProcessingDelay)
	assert.False(t, cfg.EmailEnabled)
	assert.True(t, cfg.DLQEnabled)
	assert.Zero(t, cfg.DedupTTL)
	assert.Equal(t, "notification-order", cfg.ConsumerGroup)
	assert.Equal(t, "ordering.order", cfg.Bus.OrderQueue)
	assert.Equal(t, "ordering.order.dlq", cfg.Bus.DeadLetterQueue)
}

func TestLoad_Overrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("APP_ENV", "docker")
	t.Setenv("NOTIFICATION_PROCESSING_DELAY", "250ms")
	t.Setenv("NOTIFICATION_ACK_POLICY", "ON-SUCCESS")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("EMAIL_RECIPIENT", "ops@domain.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDocker, cfg.AppEnv)
	assert.Equal(t, 250*time.Millisecond, cfg.ProcessingDelay)
	assert.Equal(t, AckOnSuccess, cfg.AckPolicy)
	assert.Equal(t, "mailhog", cfg.SMTPHost)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, "ops@domain.com", cfg.EmailRecipient)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad app env", env: map[string]string{"APP_ENV": "staging"}},
		{name: "bad ack policy", env: map[string]string{"NOTIFICATION_ACK_POLICY": "never"}},
		{name: "negative delay", env: map[string]string{"NOTIFICATION_PROCESSING_DELAY": "-1s"}},
		{name: "bad delay", env: map[string]string{"NOTIFICATION_PROCESSING_DELAY": "soon"}},
		{name: "bad smtp port", env: map[string]string{"EMAIL_ENABLED": "true", "SMTP_PORT": "70000"}},
		{name: "bad dedup store", env: map[string]string{"NOTIFICATION_DEDUP_TTL": "1h", "NOTIFICATION_DEDUP_STORE": "mongo"}},
		{name: "bad transport", env: map[string]string{"MESSAGEBUS_TRANSPORT": "rabbitmq"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "su***rd", maskSecret("superpassword"))
}
