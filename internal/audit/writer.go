package audit

/*
Writer: асинхронный журнал действий агентов.

- Non-blocking: Record только кладет запись в буферизованный канал, запись в хранилище
  идет в отдельном воркере и никак не влияет на ответ агенту.
- Batching: записи копятся и сбрасываются пачкой по таймеру или по размеру пачки.
- Load Shedding: при переполнении буфера запись уходит в диагностический лог и считается потерянной.
- Drain: Stop закрывает вход, воркер вычитывает остатки и делает финальный flush.
*/

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink определяет, куда физически сохраняются записи.
type Sink interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, entries []Entry) error
}

// Recorder: то, чем пользуется диспетчер. Никогда не возвращает ошибку.
type Recorder interface {
	Record(e Entry)
}

type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

type Writer struct {
	cfg    Config
	ch     chan Entry
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup

	// mu защищает закрытие канала от параллельного Record
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewWriter(sink Sink, cfg Config, logger *zap.Logger) *Writer {
	cfg.setDefaults()
	return &Writer{
		cfg:    cfg,
		ch:     make(chan Entry, cfg.BufferSize),
		sink:   sink,
		logger: logger.With(zap.String("mod", "audit")),
		now:    time.Now,
	}
}

func (w *Writer) Start() {
	w.wg.Add(1)
	go w.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.logger.Info("stopping audit writer: flushing buffer")
	w.wg.Wait()
	w.logger.Info("audit writer stopped",
		zap.Int64("dropped", w.dropped.Load()), zap.Int64("failed", w.failed.Load()))
}

// Record ставит запись в очередь. Не блокирует и не паникует.
func (w *Writer) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = w.now().UTC()
	}
	if e.UserContext == "" {
		e.UserContext = UserContext
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop(e, "audit writer is stopped")
		return
	}

	select {
	case w.ch <- e:
	default:
		w.drop(e, "audit buffer overflow")
	}
}

func (w *Writer) drop(e Entry, reason string) {
	w.dropped.Add(1)
	w.logger.Error(reason,
		zap.String("id", e.ID),
		zap.String("agent_id", e.AgentID),
		zap.String("module", e.Module),
		zap.String("action", e.Action),
		zap.String("result", string(e.Result)),
	)
}

// Len / Cap / Dropped, для метрик заполненности буфера.
func (w *Writer) Len() int       { return len(w.ch) }
func (w *Writer) Cap() int       { return cap(w.ch) }
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failed: сколько записей не удалось сохранить из-за ошибок хранилища.
func (w *Writer) Failed() int64 { return w.failed.Load() }

func (w *Writer) worker() {
	defer w.wg.Done()

	batch := make([]Entry, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже завершен
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
		err := w.write(ctx, batch)
		cancel()
		if err != nil {
			w.failed.Add(int64(len(batch)))
			w.logger.Error("audit flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-w.ch:
			if !ok {
				// канал закрыт в Stop: остатки уже вычитаны
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// write изолирует воркер от паники в Sink.
func (w *Writer) write(ctx context.Context, batch []Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panic: %v", r)
		}
	}()
	return w.sink.WriteBatch(ctx, batch)
}
