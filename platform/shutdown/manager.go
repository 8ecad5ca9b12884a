package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager управляет graceful shutdown сервиса.
// Ждёт SIGINT/SIGTERM (или отмену ctx) и выполняет зарегистрированные функции в обратном порядке.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	funcs []shutdownFunc
}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

// New создаёт новый Manager; timeout применяется к каждой функции отдельно
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Add регистрирует shutdown функцию.
// Функции выполняются в порядке, обратном регистрации: последний запущенный компонент останавливается первым.
func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, shutdownFunc{name: name, fn: fn})
}

// Wait блокируется до SIGINT/SIGTERM, затем выполняет shutdown
func (m *Manager) Wait() {
	m.WaitContext(context.Background())
}

// WaitContext блокируется до сигнала или отмены ctx, затем выполняет shutdown
func (m *Manager) WaitContext(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Info("Received shutdown signal, starting graceful shutdown", zap.String("signal", sig.String()))
	case <-ctx.Done():
		m.logger.Info("Context cancelled, starting graceful shutdown")
	}

	m.Shutdown()
}

// Shutdown выполняет все зарегистрированные функции, не дожидаясь сигнала
func (m *Manager) Shutdown() {
	m.mu.Lock()
	funcs := make([]shutdownFunc, len(m.funcs))
	copy(funcs, m.funcs)
	m.funcs = nil
	m.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		m.run(funcs[i])
	}

	m.logger.Info("Graceful shutdown completed")
}

func (m *Manager) run(f shutdownFunc) {
	m.logger.Info("Executing shutdown function", zap.String("name", f.name))

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	err := f.fn(ctx)
	duration := time.Since(start)

	if err != nil {
		m.logger.Error("Shutdown function failed",
			zap.String("name", f.name),
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}
	m.logger.Info("Shutdown function completed",
		zap.String("name", f.name),
		zap.Duration("duration", duration))
}

// ShutdownHTTPServer возвращает shutdown функцию для http.Server
func ShutdownHTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

// ClosePool возвращает shutdown функцию для pgxpool.Pool и подобных
func ClosePool(pool interface {
	Close()
}) func(context.Context) error {
	return func(context.Context) error {
		pool.Close()
		return nil
	}
}

// CloseFunc возвращает shutdown функцию для io.Closer (redis client, шина сообщений)
func CloseFunc(c io.Closer) func(context.Context) error {
	return func(context.Context) error {
		return c.Close()
	}
}
