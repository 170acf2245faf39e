package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/idempotency"
	"github.com/filehorizon/filehorizon/pkg/notify"
	"github.com/filehorizon/filehorizon/pkg/reader"
	"github.com/filehorizon/filehorizon/pkg/router"
	"github.com/filehorizon/filehorizon/pkg/sink"
)

type fakeNotifier struct {
	notes []notify.FileProcessedNotification
	err   error
}

func (f *fakeNotifier) Publish(_ context.Context, n notify.FileProcessedNotification) error {
	f.notes = append(f.notes, n)
	return f.err
}

func (f *fakeNotifier) Close() error { return nil }

type fixture struct {
	orch     *Orchestrator
	notifier *fakeNotifier
	srcDir   string
	dstDir   string
}

func newFixture(t *testing.T, rules []router.Rule, dests []router.Destination) *fixture {
	t.Helper()

	srcDir := t.TempDir()
	dstDir := t.TempDir()

	if rules == nil {
		rules = []router.Rule{{Name: "all", Destinations: []string{"archive"}}}
	}
	if dests == nil {
		dests = []router.Destination{{Name: "archive", Kind: event.DestinationLocal, Root: dstDir}}
	}
	r, err := router.New(rules, dests)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	orch := New(r,
		reader.NewRegistry(reader.NewLocalReader()),
		sink.NewRegistry(sink.NewLocalSink("archive", dstDir)),
		idempotency.NewMemoryStore(),
		notifier,
		nil,
		Options{})

	return &fixture{orch: orch, notifier: notifier, srcDir: srcDir, dstDir: dstDir}
}

func (f *fixture) sourceEvent(t *testing.T, name, content string) event.FileEvent {
	t.Helper()

	p := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	info, err := os.Stat(p)
	require.NoError(t, err)

	ev := event.New(event.FileMetadata{
		SourcePath:      event.IdentityKey("local", "", 0, p),
		SizeBytes:       info.Size(),
		LastModifiedUTC: info.ModTime().UTC(),
		HashAlgorithm:   "none",
	}, event.ProtocolLocal, false)
	return ev
}

func TestProcessCopiesFileToDestination(t *testing.T) {
	f := newFixture(t, nil, nil)
	ev := f.sourceEvent(t, "report.csv", "a,b,c\n")

	require.NoError(t, f.orch.Process(context.Background(), ev))

	data, err := os.ReadFile(filepath.Join(f.dstDir, "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", string(data))

	require.Len(t, f.notifier.notes, 1)
	note := f.notifier.notes[0]
	assert.Equal(t, notify.StatusSuccess, note.Status)
	assert.Equal(t, []string{"archive"}, note.Destinations)
	assert.Equal(t, ev.IdempotencyKey(), note.IdempotencyKey)
	assert.Equal(t, ev.ID, note.CorrelationID)
	assert.Equal(t, "local", note.Protocol)
	assert.False(t, note.CompletedUTC.IsZero())
}

func TestProcessDuplicateShortCircuitsToSuccess(t *testing.T) {
	f := newFixture(t, nil, nil)
	ev := f.sourceEvent(t, "a.txt", "data")
	ctx := context.Background()

	require.NoError(t, f.orch.Process(ctx, ev))
	// The redelivery must succeed without touching the sink again.
	require.NoError(t, f.orch.Process(ctx, ev))

	assert.Len(t, f.notifier.notes, 1)
}

func TestProcessInvalidEventFailsValidation(t *testing.T) {
	f := newFixture(t, nil, nil)

	err := f.orch.Process(context.Background(), event.FileEvent{})
	require.Error(t, err)
	assert.Equal(t, fherrors.KindValidation, fherrors.KindOf(err))
}

func TestProcessNoRuleMatchedNotifiesFailure(t *testing.T) {
	dstDir := t.TempDir()
	f := newFixture(t,
		[]router.Rule{{Name: "sftp-only", Match: router.Matcher{Protocol: "sftp"}, Destinations: []string{"archive"}}},
		[]router.Destination{{Name: "archive", Kind: event.DestinationLocal, Root: dstDir}})
	ev := f.sourceEvent(t, "a.txt", "data")

	err := f.orch.Process(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, fherrors.CodeNoRuleMatched, fherrors.CodeOf(err))

	require.Len(t, f.notifier.notes, 1)
	note := f.notifier.notes[0]
	assert.Equal(t, notify.StatusFailure, note.Status)
	assert.Equal(t, fherrors.CodeNoRuleMatched, note.ErrorCode)
	assert.Empty(t, note.Destinations)
}

func TestProcessMissingSourceFileFails(t *testing.T) {
	f := newFixture(t, nil, nil)

	missing := filepath.Join(f.srcDir, "gone.txt")
	ev := event.New(event.FileMetadata{
		SourcePath:    event.IdentityKey("local", "", 0, missing),
		SizeBytes:     10,
		HashAlgorithm: "none",
	}, event.ProtocolLocal, false)

	err := f.orch.Process(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, fherrors.CodeFileNotFound, fherrors.CodeOf(err))

	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, notify.StatusFailure, f.notifier.notes[0].Status)
}

func TestProcessUnknownSinkFails(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	r, err := router.New(
		[]router.Rule{{Name: "all", Destinations: []string{"archive"}}},
		[]router.Destination{{Name: "archive", Kind: event.DestinationLocal, Root: dstDir}})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	orch := New(r, reader.NewRegistry(reader.NewLocalReader()),
		sink.NewRegistry(), idempotency.NewMemoryStore(), notifier, nil, Options{})

	p := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	ev := event.New(event.FileMetadata{
		SourcePath:    event.IdentityKey("local", "", 0, p),
		SizeBytes:     4,
		HashAlgorithm: "none",
	}, event.ProtocolLocal, false)

	err = orch.Process(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, fherrors.CodeUnknownDest, fherrors.CodeOf(err))
}

func TestProcessDeleteAfterTransferRemovesSource(t *testing.T) {
	f := newFixture(t, nil, nil)
	ev := f.sourceEvent(t, "a.txt", "data")
	ev.DeleteAfterTransfer = true

	require.NoError(t, f.orch.Process(context.Background(), ev))

	_, statErr := os.Stat(filepath.Join(f.srcDir, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))

	data, err := os.ReadFile(filepath.Join(f.dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

// failingRemover reads fine but refuses deletion.
type failingRemover struct {
	reader.Reader
}

func (failingRemover) Remove(context.Context, event.FileReference) error {
	return errors.New("remove denied")
}

func TestProcessDeleteFailureDoesNotRevertSuccess(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	r, err := router.New(
		[]router.Rule{{Name: "all", Destinations: []string{"archive"}}},
		[]router.Destination{{Name: "archive", Kind: event.DestinationLocal, Root: dstDir}})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	orch := New(r,
		reader.NewRegistry(failingRemover{reader.NewLocalReader()}),
		sink.NewRegistry(sink.NewLocalSink("archive", dstDir)),
		idempotency.NewMemoryStore(), notifier, nil, Options{})

	p := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	ev := event.New(event.FileMetadata{
		SourcePath:    event.IdentityKey("local", "", 0, p),
		SizeBytes:     4,
		HashAlgorithm: "none",
	}, event.ProtocolLocal, true)

	require.NoError(t, orch.Process(context.Background(), ev))
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, notify.StatusSuccess, notifier.notes[0].Status)

	// The source must survive the refused deletion.
	_, statErr := os.Stat(p)
	assert.NoError(t, statErr)
}

func TestProcessFirstPlanWins(t *testing.T) {
	srcDir := t.TempDir()
	firstDir := t.TempDir()
	secondDir := t.TempDir()

	r, err := router.New(
		[]router.Rule{{Name: "fanout", Destinations: []string{"first", "second"}}},
		[]router.Destination{
			{Name: "first", Kind: event.DestinationLocal, Root: firstDir},
			{Name: "second", Kind: event.DestinationLocal, Root: secondDir},
		})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	orch := New(r, reader.NewRegistry(reader.NewLocalReader()),
		sink.NewRegistry(sink.NewLocalSink("first", firstDir), sink.NewLocalSink("second", secondDir)),
		idempotency.NewMemoryStore(), notifier, nil, Options{})

	p := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	ev := event.New(event.FileMetadata{
		SourcePath:    event.IdentityKey("local", "", 0, p),
		SizeBytes:     4,
		HashAlgorithm: "none",
	}, event.ProtocolLocal, false)

	require.NoError(t, orch.Process(context.Background(), ev))

	_, err = os.Stat(filepath.Join(firstDir, "a.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(secondDir, "a.txt"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, []string{"first"}, notifier.notes[0].Destinations)
}

func TestProcessNotifierFailureNeverFailsEvent(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.notifier.err = errors.New("broker down")
	ev := f.sourceEvent(t, "a.txt", "data")

	require.NoError(t, f.orch.Process(context.Background(), ev))

	data, err := os.ReadFile(filepath.Join(f.dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestProcessRenamePatternAppliedToTarget(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	r, err := router.New(
		[]router.Rule{{Name: "all", Destinations: []string{"archive"}, RenamePattern: "in/{fileName}"}},
		[]router.Destination{{Name: "archive", Kind: event.DestinationLocal, Root: dstDir}})
	require.NoError(t, err)

	orch := New(r, reader.NewRegistry(reader.NewLocalReader()),
		sink.NewRegistry(sink.NewLocalSink("archive", dstDir)),
		nil, nil, nil, Options{})

	p := filepath.Join(srcDir, "report.csv")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	ev := event.New(event.FileMetadata{
		SourcePath:    event.IdentityKey("local", "", 0, p),
		SizeBytes:     1,
		HashAlgorithm: "none",
	}, event.ProtocolLocal, false)

	require.NoError(t, orch.Process(context.Background(), ev))

	_, err = os.Stat(filepath.Join(dstDir, "in", "report.csv"))
	assert.NoError(t, err)
}

func TestProcessStreamsLargeContent(t *testing.T) {
	f := newFixture(t, nil, nil)
	payload := strings.Repeat("y", 3*sink.CopyChunkSize+5)
	ev := f.sourceEvent(t, "big.bin", payload)

	require.NoError(t, f.orch.Process(context.Background(), ev))

	in, err := os.Open(filepath.Join(f.dstDir, "big.bin"))
	require.NoError(t, err)
	defer in.Close()
	data, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Len(t, data, len(payload))
}

func TestProcessDurationUsesInjectedClock(t *testing.T) {
	f := newFixture(t, nil, nil)
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	calls := 0
	f.orch.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(250 * time.Millisecond)
	}

	ev := f.sourceEvent(t, "a.txt", "data")
	require.NoError(t, f.orch.Process(context.Background(), ev))

	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, int64(250), f.notifier.notes[0].ProcessingDurationMs)
}
