// Package joblog collects per-job log entries on a channel and persists them
// in batches, optionally mirroring each batch to Kafka.
package joblog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Appender persists log batches. store.JobRepository satisfies it.
type Appender interface {
	AppendLogs(ctx context.Context, entries []model.JobLogEntry) error
}

// Mirror receives every persisted batch.
type Mirror interface {
	Publish(ctx context.Context, entries []model.JobLogEntry) error
}

// Config sizes the sink.
type Config struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	return c
}

// Option configures a Sink.
type Option func(*Sink)

// WithMirror publishes each persisted batch to m.
func WithMirror(m Mirror) Option {
	return func(s *Sink) { s.mirror = m }
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// Sink is an append-only job log. Log never blocks on the database; a single
// goroutine drains the channel and writes batches.
type Sink struct {
	repo   Appender
	mirror Mirror
	cfg    Config
	now    func() time.Time
	log    *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan model.JobLogEntry
	flushes chan chan error
	done    chan struct{}
}

// NewSink starts the drain goroutine. Callers must Close the sink.
func NewSink(repo Appender, cfg Config, opts ...Option) *Sink {
	cfg = cfg.withDefaults()
	s := &Sink{
		repo:    repo,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		log:     zap.L().With(zap.String("component", "joblog")),
		entries: make(chan model.JobLogEntry, cfg.Buffer),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.run()
	return s
}

// Log appends one entry. Entries logged after Close are dropped.
func (s *Sink) Log(jobID string, level model.LogLevel, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("job log closed, dropping entry", zap.String("job_id", jobID), zap.String("message", msg))
		return
	}
	s.entries <- model.JobLogEntry{JobID: jobID, Timestamp: s.now(), Level: level, Message: msg}
}

// For returns a logger bound to one job.
func (s *Sink) For(jobID string) *JobLog {
	return &JobLog{sink: s, jobID: jobID}
}

// Flush blocks until every entry logged before the call is persisted.
func (s *Sink) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case s.flushes <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries, writes what is buffered, and waits for the
// drain goroutine.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "joblog: close")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.JobLogEntry, 0, s.cfg.BatchSize)
	for {
		select {
		case e, ok := <-s.entries:
			if !ok {
				_ = s.write(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= s.cfg.BatchSize {
				_ = s.write(batch)
				batch = batch[:0]
			}
		case ack := <-s.flushes:
			batch = s.drain(batch)
			ack <- s.write(batch)
			batch = batch[:0]
		case <-ticker.C:
			if len(batch) > 0 {
				_ = s.write(batch)
				batch = batch[:0]
			}
		}
	}
}

// drain moves already-buffered entries into batch without blocking.
func (s *Sink) drain(batch []model.JobLogEntry) []model.JobLogEntry {
	for {
		select {
		case e, ok := <-s.entries:
			if !ok {
				return batch
			}
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

func (s *Sink) write(batch []model.JobLogEntry) error {
	if len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.repo.AppendLogs(ctx, batch); err != nil {
		s.log.Error("persist job logs", zap.Int("entries", len(batch)), zap.Error(err))
		return eris.Wrap(err, "joblog: append")
	}
	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, batch); err != nil {
			s.log.Warn("mirror job logs", zap.Int("entries", len(batch)), zap.Error(err))
		}
	}
	return nil
}

// JobLog writes entries for a single job and echoes them to the process log.
type JobLog struct {
	sink  *Sink
	jobID string
}

func (l *JobLog) Info(format string, args ...any) {
	l.write(model.LogInfo, format, args...)
}

func (l *JobLog) Warn(format string, args ...any) {
	l.write(model.LogWarn, format, args...)
}

func (l *JobLog) Error(format string, args ...any) {
	l.write(model.LogError, format, args...)
}

func (l *JobLog) write(level model.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fields := []zap.Field{zap.String("job_id", l.jobID)}
	switch level {
	case model.LogError:
		zap.L().Error(msg, fields...)
	case model.LogWarn:
		zap.L().Warn(msg, fields...)
	default:
		zap.L().Info(msg, fields...)
	}
	l.sink.Log(l.jobID, level, msg)
}
