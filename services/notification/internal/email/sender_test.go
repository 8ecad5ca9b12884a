package email

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSMTP минимальный SMTP сервер: принимает одно письмо и отдаёт его DATA в канал
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	data := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				_ = tp.PrintfLine("250 OK")
			case cmd == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				data <- strings.Join(body, "\n")
				_ = tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, data
}

func TestSMTPSender_Send(t *testing.T) {
	host, port, data := fakeSMTP(t)

	sender := NewSMTPSender(zap.NewNop(), SMTPConfig{
		Host: host,
		Port: port,
		From: "ordering@domain.com",
	})
	sender.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	correlationID := uuid.New()
	messageID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sender.Send(ctx, correlationID, messageID, "testing@domain.com", "Order: PO-1001"))

	select {
	case msg := <-data:
		assert.Contains(t, msg, "To: testing@domain.com")
		assert.Contains(t, msg, "X-Correlation-ID: "+correlationID.String())
		assert.Contains(t, msg, "Message-ID: <"+messageID.String()+"@ordering>")
		assert.Contains(t, msg, "Order: PO-1001")
	case <-ctx.Done():
		t.Fatal("message was not delivered to fake smtp server")
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	host, port, _ := fakeSMTP(t)

	sender := NewSMTPSender(zap.NewNop(), SMTPConfig{Host: host, Port: port, From: "ordering@domain.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, uuid.New(), uuid.New(), "testing@domain.com", "Order: PO-1001")
	require.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	correlationID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	messageID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	msg := string(buildMessage("a@x", "b@y", correlationID, messageID, "line1\nline2", time.Unix(0, 0).UTC()))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "line1\r\nline2\r\n", body)

	r := textproto.NewReader(bufio.NewReader(strings.NewReader(head + "\r\n\r\n")))
	h, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "a@x", h.Get("From"))
	assert.Equal(t, "b@y", h.Get("To"))
	assert.Equal(t, correlationID.String(), h.Get("X-Correlation-ID"))
	assert.Equal(t, "<"+messageID.String()+"@ordering>", h.Get("Message-ID"))
}

func TestNoOpSender(t *testing.T) {
	sender := NewNoOpSender(zap.NewNop())
	assert.NoError(t, sender.Send(context.Background(), uuid.New(), uuid.New(), "testing@domain.com", strings.Repeat("x", 100)))
}
