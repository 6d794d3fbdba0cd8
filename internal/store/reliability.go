package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"golang.org/x/time/rate"
)

// ReliabilityConfig: настройки клиентского слоя надежности.
type ReliabilityConfig struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MaxFailures   uint32
	RetryAttempts uint
	RateLimit     float64
	RateBurst     int
	// OnStateChange вызывается при переключении предохранителя (для метрик).
	OnStateChange func(name string, from, to gobreaker.State)
}

// ReliableStore: обертка над Store: Rate Limiter -> Circuit Breaker -> Retry.
// Повторяются только чтения: запись не идемпотентна.
type ReliableStore struct {
	next     Store
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
}

func NewReliableStore(next Store, cfg ReliabilityConfig) *ReliableStore {
	if cfg.Name == "" {
		cfg.Name = "data-store"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.MaxFailures
		},
		// Промах по id и ошибки валидации не считаются сбоем хранилища
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrDataStore)
		},
		OnStateChange: cfg.OnStateChange,
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &ReliableStore{
		next:     next,
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: cfg.RetryAttempts,
	}
}

func (w *ReliableStore) Select(ctx context.Context, collection string, q Query) ([]Record, error) {
	var out []Record
	err := w.read(ctx, "select "+collection, func() error {
		var err error
		out, err = w.next.Select(ctx, collection, q)
		return err
	})
	return out, err
}

func (w *ReliableStore) Get(ctx context.Context, collection, id string) (Record, error) {
	var out Record
	err := w.read(ctx, "get "+collection, func() error {
		var err error
		out, err = w.next.Get(ctx, collection, id)
		return err
	})
	return out, err
}

func (w *ReliableStore) Insert(ctx context.Context, collection string, values Record) (Record, error) {
	var out Record
	err := w.write(ctx, "insert "+collection, func() error {
		var err error
		out, err = w.next.Insert(ctx, collection, values)
		return err
	})
	return out, err
}

func (w *ReliableStore) Update(ctx context.Context, collection, id string, values Record) (Record, error) {
	var out Record
	err := w.write(ctx, "update "+collection, func() error {
		var err error
		out, err = w.next.Update(ctx, collection, id, values)
		return err
	})
	return out, err
}

func (w *ReliableStore) Delete(ctx context.Context, collection, id string) error {
	return w.write(ctx, "delete "+collection, func() error {
		return w.next.Delete(ctx, collection, id)
	})
}

// read: лимитер, предохранитель и повторы с экспоненциальной задержкой.
func (w *ReliableStore) read(ctx context.Context, op string, call func() error) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return domain.DataStore(op, fmt.Errorf("rate limit exceeded: %w", err))
	}

	// Ошибки, которые не надо повторять (NotFound, Validation), выносим мимо retry
	var final error
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				return retry.BackOffDelay(n, err, config)
			}),
		)

		err := r.Do(func() error {
			final = call()
			if final != nil && !errors.Is(final, domain.ErrDataStore) {
				return nil
			}
			return final
		})
		if err != nil && final == nil {
			final = domain.DataStore(op, err)
		}
		return nil, final
	})
	return w.classify(op, err, final)
}

// write: без повторов, иначе рискуем задвоить вставку.
func (w *ReliableStore) write(ctx context.Context, op string, call func() error) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return domain.DataStore(op, fmt.Errorf("rate limit exceeded: %w", err))
	}

	var final error
	_, err := w.cb.Execute(func() (interface{}, error) {
		final = call()
		return nil, final
	})
	return w.classify(op, err, final)
}

func (w *ReliableStore) classify(op string, cbErr, callErr error) error {
	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		return domain.DataStore(op, cbErr)
	}
	if callErr == nil {
		return nil
	}
	var gwErr *domain.Error
	if errors.As(callErr, &gwErr) {
		return callErr
	}
	return domain.DataStore(op, callErr)
}
