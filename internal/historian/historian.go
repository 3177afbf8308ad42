// Package historian drains the room-action queue into durable storage and
// marks rooms abandoned once they go quiet.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/gamehub/internal/cache"
	"github.com/jason-s-yu/gamehub/internal/dependencies/clock"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists drained actions.
type Sink interface {
	WriteBatch(ctx context.Context, actions []models.RoomAction) error
	MarkAbandoned(ctx context.Context, roomID string) error
}

type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Queue:         cache.DefaultQueueName,
		BatchSize:     20,
		FlushInterval: 500 * time.Millisecond,
		Inactivity:    10 * time.Minute,
		SweepInterval: time.Minute,
		PopTimeout:    3 * time.Second,
	}
}

// Service batches actions popped from Redis and hands them to a Sink.
type Service struct {
	rdb    *redis.Client
	sink   Sink
	cfg    Config
	clk    clock.Clock
	logger *logrus.Logger

	lastActivity sync.Map // room id -> time.Time

	batchMu sync.Mutex
	batch   []models.RoomAction
}

func New(rdb *redis.Client, sink Sink, cfg Config, clk clock.Clock, logger *logrus.Logger) *Service {
	def := DefaultConfig()
	if cfg.Queue == "" {
		cfg.Queue = def.Queue
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = def.Inactivity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = def.PopTimeout
	}
	return &Service{
		rdb:    rdb,
		sink:   sink,
		cfg:    cfg,
		clk:    clk,
		logger: logger,
		batch:  make([]models.RoomAction, 0, cfg.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes whatever is still batched.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.readLoop(ctx) }()
	go func() { defer wg.Done(); s.flushLoop(ctx) }()
	go func() { defer wg.Done(); s.inactivityLoop(ctx) }()

	s.logger.Infof("historian started on queue %s", s.cfg.Queue)
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		// BLPop with a timeout so cancellation is noticed.
		res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.logger.Errorf("BLPop: %v", err)
				time.Sleep(s.cfg.FlushInterval)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		// res[0] is the queue name, res[1] the payload.
		var action models.RoomAction
		if err := json.Unmarshal([]byte(res[1]), &action); err != nil {
			s.logger.Warnf("invalid room action record: %v", err)
			continue
		}
		s.Add(ctx, action)
	}
}

// Add records activity for the action's room and batches it, flushing when
// the batch is full.
func (s *Service) Add(ctx context.Context, action models.RoomAction) {
	s.lastActivity.Store(action.RoomID, s.clk.Now())

	s.batchMu.Lock()
	s.batch = append(s.batch, action)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes the pending batch. A failed batch is put back in front of
// anything queued since so it is retried on the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.RoomAction, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.WriteBatch(ctx, pending); err != nil {
		s.logger.Errorf("flush of %d actions failed: %v", len(pending), err)
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.logger.Debugf("flushed %d actions", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepInactive(ctx)
		}
	}
}

// SweepInactive marks every room idle for longer than the inactivity
// threshold as abandoned and stops tracking it.
func (s *Service) SweepInactive(ctx context.Context) {
	now := s.clk.Now()
	s.lastActivity.Range(func(key, val interface{}) bool {
		roomID, ok1 := key.(string)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.cfg.Inactivity {
			return true
		}
		if err := s.sink.MarkAbandoned(ctx, roomID); err != nil {
			s.logger.Errorf("failed to mark room %s abandoned: %v", roomID, err)
			return true
		}
		s.lastActivity.Delete(roomID)
		s.logger.Infof("marked room %s abandoned after inactivity", roomID)
		return true
	})
}
