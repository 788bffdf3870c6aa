package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/worker"
)

func TestSMTPNotifierDeliversThroughPool(t *testing.T) {
	pool := worker.NewPool("notify-test", 1, 8, zap.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	var mu sync.Mutex
	var sentTo []string
	var sentMsg []byte
	done := make(chan struct{})

	n := NewSMTPNotifier("localhost:25", "noreply@example.com", pool, zap.NewNop())
	n.send = func(addr, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sentTo = to
		sentMsg = msg
		close(done)
		return nil
	}

	n.ReportIssue(context.Background(), "admin@example.com", errors.New("broadcast transaction: nonce too low"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("report was never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"admin@example.com"}, sentTo)
	assert.Contains(t, string(sentMsg), "nonce too low")
	assert.Contains(t, string(sentMsg), "Subject: Blockchain anchoring failure")
}

func TestSMTPNotifierNeverBlocksCaller(t *testing.T) {
	pool := worker.NewPool("notify-slow", 1, 0, zap.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	n := NewSMTPNotifier("localhost:25", "noreply@example.com", pool, zap.NewNop())
	n.send = func(string, string, []string, []byte) error {
		time.Sleep(time.Second)
		return nil
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		n.ReportIssue(context.Background(), "admin@example.com", errors.New("slow sink"))
	}
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLogNotifierAcceptsReports(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	n.ReportIssue(context.Background(), "admin@example.com", errors.New("boom"))
}
