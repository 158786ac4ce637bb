package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/refscan/internal/scanner"
)

// fakeScanner returns queued results, one per Scan call. The last entry is
// repeated once the queue is drained.
type fakeScanner struct {
	results []*scanner.Result
	errs    []error
	calls   int
}

func (f *fakeScanner) Scan(ctx context.Context, dir string) (*scanner.Result, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	if f.errs != nil && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.results[i], nil
}

func result(records ...scanner.FileRecord) *scanner.Result {
	return &scanner.Result{Dir: "src", Records: records}
}

func rec(name string, refs ...string) scanner.FileRecord {
	if refs == nil {
		refs = []string{}
	}
	return scanner.FileRecord{Name: name, Refs: refs, Count: len(refs)}
}

func TestCompare(t *testing.T) {
	prev := result(
		rec("a.go", "Crew"),
		rec("b.go", "Crew", "Agent", "Tool", "Message"),
		rec("c.go", "Crew", "Agent"),
		rec("gone.go"),
		rec("same.go", "Tool"),
		rec("swap.go", "Crew"),
	)
	curr := result(
		rec("a.go", "Crew", "Agent", "Tool", "Message"),
		rec("b.go", "Crew", "Agent"),
		rec("c.go", "Crew", "Agent", "Tool"),
		rec("new.go", "Agent"),
		rec("same.go", "Tool"),
		rec("swap.go", "Tool"),
	)

	alerts := Compare(prev, curr, 3)
	require.Len(t, alerts, 6)

	got := make([][3]string, len(alerts))
	for i, a := range alerts {
		got[i] = [3]string{a.File, a.Level, a.Title}
	}
	assert.Equal(t, [][3]string{
		{"a.go", "critical", "No longer a move candidate"},
		{"b.go", "info", "New move candidate"},
		{"c.go", "warning", "References increased"},
		{"gone.go", "info", "File removed"},
		{"new.go", "info", "New file"},
		{"swap.go", "info", "References changed"},
	}, got)

	assert.Equal(t, "a.go: 1 → 4 references (+Agent, +Tool, +Message)", alerts[0].Message)
	assert.Equal(t, "b.go: 4 → 2 references (-Tool, -Message)", alerts[1].Message)
	assert.Equal(t, "swap.go: 1 → 1 references (+Tool, -Crew)", alerts[5].Message)
	assert.Equal(t, "new.go has 1 references", alerts[4].Message)
}

func TestCompare_NoChanges(t *testing.T) {
	r := result(rec("a.go", "Crew"))
	assert.Empty(t, Compare(r, r, 3))
}

func TestCheck_DeduplicatesScanFailures(t *testing.T) {
	failure := errors.New("permission denied")
	fs := &fakeScanner{
		results: []*scanner.Result{result(rec("a.go")), nil, nil, result(rec("a.go", "Crew"))},
		errs:    []error{nil, failure, failure, nil},
	}
	w := New(fs, "src", time.Minute, 3, nil)
	ctx := context.Background()

	_, err := w.Snapshot(ctx)
	require.NoError(t, err)

	alerts := w.Check(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, "warning", alerts[0].Level)
	assert.Equal(t, "Scan failed", alerts[0].Title)

	// Same failure again is suppressed.
	assert.Empty(t, w.Check(ctx))

	// The baseline survived the failures.
	alerts = w.Check(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, "References increased", alerts[0].Title)
}

func TestCheck_CancelledContextIsSilent(t *testing.T) {
	fs := &fakeScanner{
		results: []*scanner.Result{nil},
		errs:    []error{scanner.ErrScanCancelled},
	}
	w := New(fs, "src", time.Minute, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, w.Check(ctx))
}

func TestRun_EmitsAlertsUntilCancelled(t *testing.T) {
	fs := &fakeScanner{
		results: []*scanner.Result{result(rec("a.go")), result(rec("a.go"), rec("b.go"))},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alerts := make(chan Alert, 4)
	w := New(fs, "src", 10*time.Millisecond, 3, func(a Alert) {
		alerts <- a
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case a := <-alerts:
		assert.Equal(t, "b.go", a.File)
		assert.Equal(t, "New file", a.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("no alert received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_InitialScanFailure(t *testing.T) {
	fs := &fakeScanner{
		results: []*scanner.Result{nil},
		errs:    []error{scanner.ErrNotDirectory},
	}
	w := New(fs, "src", time.Minute, 3, nil)
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, scanner.ErrNotDirectory)
}
