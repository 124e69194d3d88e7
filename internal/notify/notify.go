// Package notify delivers alert records to people.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
)

// Sink delivers alert records. Callers pass only records with status alert.
type Sink interface {
	Send(ctx context.Context, records []alerts.Record) error
}

// Retry defaults.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 300 * time.Millisecond
)

// FormatBody renders records as the plain-text notification body.
func FormatBody(records []alerts.Record) string {
	var b strings.Builder
	b.WriteString("The following alerts were detected:\n\n")
	for _, r := range records {
		msg := r.Message
		if msg == "" {
			msg = "Unknown alert"
		}
		b.WriteString("- ")
		b.WriteString(msg)
		b.WriteString("\n")
	}
	return b.String()
}

// LogSink writes each alert to a logger.
type LogSink struct {
	Log logger.Logger
}

// Send implements Sink.
func (s LogSink) Send(ctx context.Context, records []alerts.Record) error {
	log := logger.OrDefault(s.Log)
	for _, r := range records {
		log.Warn("%s", r.Message)
	}
	return nil
}

// RetrySink retries a failing sink with linear backoff: the wait after
// attempt n is n*Backoff.
type RetrySink struct {
	Sink     Sink
	Attempts int
	Backoff  time.Duration
	Log      logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps sink with the default attempts and backoff.
func WithRetry(sink Sink, log logger.Logger) *RetrySink {
	return &RetrySink{Sink: sink, Attempts: DefaultAttempts, Backoff: DefaultBackoff, Log: log}
}

// Send implements Sink.
func (s *RetrySink) Send(ctx context.Context, records []alerts.Record) error {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := logger.OrDefault(s.Log)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = s.Sink.Send(ctx, records); err == nil {
			if attempt > 1 {
				log.Info("notification sent on attempt %d", attempt)
			}
			return nil
		}
		log.Warn("notification attempt %d/%d failed: %s", attempt, attempts, errors.Reason(err))
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, time.Duration(attempt)*s.Backoff); serr != nil {
			return errors.WrapWithCode(serr, errors.ErrNotify, "Notification cancelled", "")
		}
	}
	return errors.WrapWithCode(err, errors.ErrNotify,
		"Couldn't deliver alert notification",
		"Check the notify.email settings and that the SMTP server is reachable")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
