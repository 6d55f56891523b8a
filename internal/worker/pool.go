package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/model"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
)

var (
	ErrQueueFull   = errors.New("request log queue is full")
	ErrPoolStopped = errors.New("request log pool is stopped")
)

const writeTimeout = 5 * time.Second

// FailureFunc получает записи, которые не удалось сохранить
type FailureFunc func(entry model.RequestLog, err error)

// Pool сохраняет журнал запросов в фоне. Submit не блокирует,
// воркеры разбирают очередь до Stop
type Pool struct {
	writer  repo.LogRepository
	logger  *zap.Logger
	count   int
	queue   chan model.RequestLog
	breaker *gobreaker.CircuitBreaker
	onFail  FailureFunc

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(writer repo.LogRepository, logger *zap.Logger, count, queueSize int, onFail FailureFunc) *Pool {
	if count <= 0 {
		count = 1
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if onFail == nil {
		onFail = func(model.RequestLog, error) {}
	}

	return &Pool{
		writer: writer,
		logger: logger,
		count:  count,
		queue:  make(chan model.RequestLog, queueSize),
		// при недоступной БД не копим таймауты, а сразу отбрасываем записи
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "request-log-store",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		onFail: onFail,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting request log workers", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit ставит запись в очередь, не дожидаясь места
func (p *Pool) Submit(entry model.RequestLog) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop закрывает очередь и ждет, пока все записи сохранятся
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info("Stopping request log workers...")
	p.wg.Wait()
	p.logger.Info("Request log workers stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case entry, ok := <-p.queue:
			if !ok {
				return
			}
			p.persist(ctx, entry)
		case <-ctx.Done():
			p.logger.Debug("request log worker cancelled", zap.Int("worker", id))
			return
		}
	}
}

func (p *Pool) persist(ctx context.Context, entry model.RequestLog) {
	defer func() {
		if r := recover(); r != nil {
			p.onFail(entry, fmt.Errorf("request log writer panicked: %v", r))
		}
	}()

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.InsertLog(writeCtx, entry)
	})
	if err != nil {
		p.onFail(entry, err)
	}
}
