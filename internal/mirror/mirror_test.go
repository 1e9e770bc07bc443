package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeptrace/internal/sweep"
)

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
	block    chan struct{}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) published() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

func TestPublisherMirrorsSamples(t *testing.T) {
	fake := &fakeRedis{}
	p := newPublisher(fake, "sweeptrace:samples")
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	go p.Run(context.Background())

	p.Observe("abc", sweep.Sample{V1: 1, I1: 2, V2: 3, I2: 4})
	p.Observe("abc", sweep.Sample{V1: 5})
	require.NoError(t, p.Close())

	payloads := fake.published()
	require.Len(t, payloads, 2)
	assert.Equal(t, []string{"sweeptrace:samples", "sweeptrace:samples"}, fake.channels)

	var msg Message
	require.NoError(t, json.Unmarshal(payloads[0], &msg))
	assert.Equal(t, "abc", msg.Session)
	assert.Equal(t, uint64(1), msg.Seq)
	assert.True(t, fixed.Equal(msg.Time))
	assert.Equal(t, sweep.Sample{V1: 1, I1: 2, V2: 3, I2: 4}, msg.Sample)
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	fake := &fakeRedis{}
	p := newPublisher(fake, "c")

	// not running yet, so nothing drains the queue
	for i := 0; i < queueSize+10; i++ {
		p.Observe("s", sweep.Sample{V1: float64(i)})
	}
	assert.Equal(t, uint64(10), p.Dropped())
}

func TestPublisherSurvivesPublishErrors(t *testing.T) {
	fake := &fakeRedis{err: errors.New("connection refused")}
	p := newPublisher(fake, "c")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Observe("s", sweep.Sample{V1: 1})
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Empty(t, fake.published())
}

func TestObserveNeverBlocks(t *testing.T) {
	fake := &fakeRedis{block: make(chan struct{})}
	p := newPublisher(fake, "c")
	go p.Run(context.Background())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 2*queueSize; i++ {
			p.Observe("s", sweep.Sample{})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a stalled redis")
	}
	assert.Greater(t, p.Dropped(), uint64(0))
	close(fake.block)
	require.NoError(t, p.Close())
}
