package pipeline

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filehorizon/filehorizon/pkg/config"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/queue"
)

type fakeProcessor struct {
	mu     sync.Mutex
	events []event.FileEvent
	err    error
}

func (f *fakeProcessor) Process(_ context.Context, ev event.FileEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func loopConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Polling.Interval = 20 * time.Millisecond
	cfg.Polling.BatchReadLimit = 4
	return cfg
}

func testEvent() event.FileEvent {
	return event.New(event.FileMetadata{
		SourcePath: "local://_:/var/spool/inbox/report.csv",
		SizeBytes:  42,
	}, event.ProtocolLocal, false)
}

func newLoopPipeline(cfg *config.Config, proc processor) (*Pipeline, *queue.MemoryQueue) {
	q := queue.NewMemoryQueue(nil)
	return &Pipeline{
		cfg:    cfg,
		queue:  q,
		orch:   proc,
		health: newHealthState(cfg.Pipeline.Role),
	}, q
}

func TestProcessLoopAcknowledgesSuccess(t *testing.T) {
	proc := &fakeProcessor{}
	p, q := newLoopPipeline(loopConfig(), proc)

	require.NoError(t, q.Enqueue(context.Background(), testEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.processLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return proc.count() == 1 && q.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestProcessLoopAcknowledgesPoisonEvents(t *testing.T) {
	proc := &fakeProcessor{err: fherrors.New(fherrors.KindValidation,
		fherrors.CodeValidation, "test", "bad event")}
	p, q := newLoopPipeline(loopConfig(), proc)

	require.NoError(t, q.Enqueue(context.Background(), testEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.processLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return proc.count() == 1 && q.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestProcessLoopLeavesFailedEventsInflight(t *testing.T) {
	proc := &fakeProcessor{err: fherrors.New(fherrors.KindNetwork,
		fherrors.CodeTransient, "test", "endpoint down")}
	p, q := newLoopPipeline(loopConfig(), proc)

	require.NoError(t, q.Enqueue(context.Background(), testEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.processLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return proc.count() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.InflightCount())

	cancel()
	<-done
}

func TestNextIdleBackoffDoublesAndCaps(t *testing.T) {
	d := idleBackoffStart
	for range 10 {
		d = nextIdleBackoff(d)
	}
	assert.Equal(t, idleBackoffMax, d)
}

func TestHealthSnapshotRoleAware(t *testing.T) {
	h := newHealthState(config.RolePoller)
	resp := h.snapshot(time.Second)

	// A poller replica reports only the poll loop.
	assert.Contains(t, resp.Loops, "poll")
	assert.NotContains(t, resp.Loops, "process")
	assert.Equal(t, "degraded", resp.Status)

	h.markPoll()
	resp = h.snapshot(time.Second)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Loops["poll"].Alive)
}

func TestHealthSnapshotStaleLoop(t *testing.T) {
	h := newHealthState(config.RoleAll)
	h.markPoll()
	h.markProcess()

	time.Sleep(time.Millisecond)
	resp := h.snapshot(time.Nanosecond)
	assert.Equal(t, "degraded", resp.Status)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := loopConfig()
	p, _ := newLoopPipeline(cfg, &fakeProcessor{})

	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	// No loop has run yet.
	assert.Equal(t, 503, res.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, config.RoleAll, body.Role)
}

func TestPipelineEndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Polling.Interval = 20 * time.Millisecond
	cfg.FileSources = []config.FileSourceConfig{
		{Name: "inbox", Path: srcDir},
	}
	cfg.Destinations = config.DestinationsConfig{
		Local: []config.LocalDestinationConfig{{Name: "archive", Root: dstDir}},
	}
	cfg.Routing.Rules = []config.RuleConfig{
		{Name: "archive-everything", Destinations: []string{"archive"}},
	}
	cfg.Idempotency.Enabled = true
	require.NoError(t, config.Validate(cfg))

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "report.csv"), []byte("a,b,c\n"), 0o644))

	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p.poller)
	require.NotNil(t, p.orch)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); p.pollLoop(ctx) }()
	go func() { defer wg.Done(); p.processLoop(ctx) }()

	target := filepath.Join(dstDir, "report.csv")
	require.Eventually(t, func() bool {
		_, err := os.Stat(target)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", string(content))

	cancel()
	wg.Wait()
	p.close()
}
