// Package telemetry ships log entries to a remote collector. Delivery is
// best effort and fire-and-forget: submission never blocks the caller, order
// is preserved per process, and delivery failures are never surfaced to the
// code that logged.
package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vadimbarashkov/shorturls/internal/config"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Entry is the wire payload the collector expects.
type Entry struct {
	Stack   string `json:"stack"`
	Level   string `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// Sink queues entries on a bounded channel and delivers them one at a time
// from a single drain goroutine, preserving submission order. A full queue
// drops the entry rather than stalling the request path.
type Sink struct {
	endpoint string
	token    string
	stack    string
	client   *http.Client
	logger   *slog.Logger

	queue chan Entry
	once  sync.Once
	done  chan struct{}
}

// NewSink constructs a sink and starts its drain goroutine. Call Close to
// flush and stop it.
func NewSink(cfg config.Telemetry, logger *slog.Logger) *Sink {
	s := &Sink{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		stack:    cfg.Stack,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		queue:    make(chan Entry, cfg.QueueSize),
		done:     make(chan struct{}),
	}

	go s.drain()

	return s
}

// Send enqueues an entry for delivery. It never blocks: when the queue is
// full the entry is dropped and counted locally.
func (s *Sink) Send(stack, level, component, message string) {
	select {
	case s.queue <- Entry{Stack: stack, Level: level, Package: component, Message: message}:
	default:
		s.logger.Warn("telemetry queue full, entry dropped",
			slog.String("component", component),
			slog.String("level", level),
		)
	}
}

func (s *Sink) Debug(component, message string) { s.Send(s.stack, LevelDebug, component, message) }
func (s *Sink) Info(component, message string)  { s.Send(s.stack, LevelInfo, component, message) }
func (s *Sink) Warn(component, message string)  { s.Send(s.stack, LevelWarn, component, message) }
func (s *Sink) Error(component, message string) { s.Send(s.stack, LevelError, component, message) }
func (s *Sink) Fatal(component, message string) { s.Send(s.stack, LevelFatal, component, message) }

// Close stops accepting entries, drains what is already queued and waits for
// the drain goroutine to exit.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
	})
}

func (s *Sink) drain() {
	defer close(s.done)

	for entry := range s.queue {
		s.deliver(entry)
	}
}

func (s *Sink) deliver(entry Entry) {
	body, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("failed to marshal telemetry entry", slog.Any("err", err))
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("failed to build telemetry request", slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("failed to deliver telemetry entry", slog.Any("err", err))
		return
	}
	resp.Body.Close()
}

// Nop discards every entry. It stands in for the sink when no telemetry
// endpoint is configured.
type Nop struct{}

func (Nop) Send(_, _, _, _ string) {}
func (Nop) Debug(_, _ string)      {}
func (Nop) Info(_, _ string)       {}
func (Nop) Warn(_, _ string)       {}
func (Nop) Error(_, _ string)      {}
func (Nop) Fatal(_, _ string)      {}
