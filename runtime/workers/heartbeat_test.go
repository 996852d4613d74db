package workers

import (
	"bytes"
	"context"
	"group-chat/runtime"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedStats runtime.Stats

func (f fixedStats) Stats() runtime.Stats { return runtime.Stats(f) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHeartbeatWorker_Reports_Registry_Stats(t *testing.T) {
	req := require.New(t)
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, nil))
	worker := NewHeartbeatWorker(log, fixedStats{Groups: 3, Connections: 2, Bindings: 5}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then at least one heartbeat carries the registry figures
	req.Eventually(func() bool {
		return strings.Contains(out.String(), "msg=Heartbeat groups=3 connections=2 bindings=5")
	}, time.Second, 10*time.Millisecond)

	// When the context is over the worker returns cleanly
	cancel()
	req.NoError(<-done)
}
