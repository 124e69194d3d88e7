package logger

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the standard logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		expectLog bool
	}{
		{"logs when VMW_DEBUG is set", "1", true},
		{"any value enables debug", "true", true},
		{"silent when VMW_DEBUG is empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			t.Setenv("VMW_DEBUG", tt.envValue)
			EnableDebug(false)

			NewEnvLogger("[remote]").Debug("dial %s", "web1")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "[remote] dial web1")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(Logger)
		want string
	}{
		{"info", func(l Logger) { l.Info("evaluated %d hosts", 3) }, "[alerts] evaluated 3 hosts"},
		{"warn", func(l Logger) { l.Warn("listing failed on %s", "web1") }, "[alerts] WARN: listing failed on web1"},
		{"error", func(l Logger) { l.Error("panic: %v", "boom") }, "[alerts] ERROR: panic: boom"},
		{"format verbs", func(l Logger) { l.Info("%.2f%% of %s", 91.456, "cpu") }, "91.46% of cpu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			tt.log(NewEnvLogger("[alerts]"))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestEnableDebug(t *testing.T) {
	buf := captureLog(t)
	t.Setenv("VMW_DEBUG", "")

	EnableDebug(true)
	t.Cleanup(func() { EnableDebug(false) })

	assert.True(t, DebugEnabled())
	NewEnvLogger("[cli]").Debug("forced")
	assert.Contains(t, buf.String(), "[cli] forced")
}

func TestNoopLogger(t *testing.T) {
	buf := captureLog(t)

	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Empty(t, buf.String())
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()
	assert.False(t, l.HasLevel("debug"))

	l.Debug("cache miss for %s", "web1")
	l.Info("fetched %s", "web1")
	l.Warn("slow host %s", "db1")
	l.Error("send failed")

	assert.Equal(t, []LogMessage{
		{Level: "debug", Message: "cache miss for web1"},
		{Level: "info", Message: "fetched web1"},
		{Level: "warn", Message: "slow host db1"},
		{Level: "error", Message: "send failed"},
	}, l.Entries())
	assert.True(t, l.HasLevel("error"))
	assert.True(t, l.Contains("warn", "db1"))
	assert.False(t, l.Contains("info", "db1"))

	l.Clear()
	assert.Empty(t, l.Entries())
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Info("worker %d", n)
		}(i)
	}
	wg.Wait()

	require.Len(t, l.Entries(), 50)
	assert.True(t, l.Contains("info", "worker 7"))
}

func TestDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })
	require.NotNil(t, original)

	buf := NewBufferLogger()
	SetDefault(buf)
	assert.Equal(t, Logger(buf), Default())
	assert.Equal(t, Logger(buf), OrDefault(nil))

	other := NewBufferLogger()
	assert.Equal(t, Logger(other), OrDefault(other))
}
