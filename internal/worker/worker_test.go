package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/waas-labs/backend/pkg/queue"
)

// blockingQueue mimics BLPop under a cancelled context: Dequeue returns the
// context's error instead of a job.
type blockingQueue struct {
	retries int
}

func (q *blockingQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (q *blockingQueue) Retry(context.Context, *queue.Job) error {
	q.retries++
	return nil
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	p := NewDeliveryProcessor(nil, nil, nil, &blockingQueue{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewDeliveryProcessor(nil, nil, nil, &blockingQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "j1", Type: "unknown"})
	assert.Error(t, err)
}
