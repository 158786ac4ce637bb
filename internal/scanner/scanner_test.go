package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endToEndDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.go":   "type Agent struct{}",
		"b.go":   "func run() { Crew{}; Tool{} }",
		"c.go":   "// empty",
		"go.mod": "module example.com/crew\n\ntype Agent",
	})
	return dir
}

func TestScan_EndToEnd(t *testing.T) {
	dir := endToEndDir(t)
	s := New(MustVocabulary(DefaultVocabulary))

	result, err := s.Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	idx := result.Index()
	require.NotContains(t, idx, "go.mod")

	a := idx["a.go"]
	assert.Equal(t, 1, a.Count)
	assert.Equal(t, []string{"Agent"}, a.Refs)
	assert.True(t, a.HasType)
	assert.False(t, a.HasFunc)

	b := idx["b.go"]
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, []string{"Crew", "Tool"}, b.Refs)
	assert.True(t, b.HasFunc)
	assert.False(t, b.HasType)

	c := idx["c.go"]
	assert.Equal(t, 0, c.Count)
	assert.Empty(t, c.Refs)
	assert.NotNil(t, c.Refs)

	sorted := SortByCount(result.Records)
	names := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	assert.Equal(t, []string{"c.go", "a.go", "b.go"}, names)
}

func TestScan_RecordsInDirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"z.go": "",
		"m.go": "",
		"a.go": "",
	})

	result, err := New(MustVocabulary(DefaultVocabulary)).Scan(context.Background(), dir)
	require.NoError(t, err)

	var names []string
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a.go", "m.go", "z.go"}, names)
}

func TestScan_CountMatchesRefs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"one.go":   "var m Message; var m2 Message",
		"two.go":   "AgentConfig CrewConfig ModelConfig StreamEvent",
		"three.go": "AgentX CrewExecutorFactory _Tool Tool_",
	})

	vocab := MustVocabulary(DefaultVocabulary)
	result, err := New(vocab).Scan(context.Background(), dir)
	require.NoError(t, err)

	allowed := make(map[string]bool)
	for _, n := range vocab.Names() {
		allowed[n] = true
	}
	for _, rec := range result.Records {
		assert.Equal(t, len(rec.Refs), rec.Count, rec.Name)
		seen := make(map[string]bool)
		for _, ref := range rec.Refs {
			assert.True(t, allowed[ref], "%s: %q not in vocabulary", rec.Name, ref)
			assert.False(t, seen[ref], "%s: duplicate %q", rec.Name, ref)
			seen[ref] = true
		}
	}

	idx := result.Index()
	assert.Equal(t, []string{"Message"}, idx["one.go"].Refs)
	assert.Equal(t, 4, idx["two.go"].Count)
	assert.Equal(t, 0, idx["three.go"].Count)
}

func TestScan_CustomExtensionAndExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"agent.rs":  "struct Agent;",
		"skip.rs":   "Crew",
		"agent.go":  "Agent",
		"build.rs":  "Tool",
		"README.md": "Agent Crew Tool",
	})

	s := New(MustVocabulary(DefaultVocabulary),
		WithExtension(".rs"),
		WithExcludeNames([]string{"build.rs"}),
		WithExcludePatterns([]string{"skip*"}),
	)
	result, err := s.Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "agent.rs", result.Records[0].Name)
	assert.Equal(t, []string{"Agent"}, result.Records[0].Refs)
}

func TestScan_NotADirectory(t *testing.T) {
	dir := endToEndDir(t)

	_, err := New(MustVocabulary(DefaultVocabulary)).Scan(context.Background(), filepath.Join(dir, "a.go"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotDirectory)

	var scanErr ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, "discovery", scanErr.Phase)
}

func TestScan_CancelledContext(t *testing.T) {
	dir := endToEndDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			_, err := New(MustVocabulary(DefaultVocabulary), WithWorkers(workers)).Scan(ctx, dir)
			assert.ErrorIs(t, err, ErrScanCancelled)
		})
	}
}

// failReads makes readFile fail for the named file for the duration of the test.
func failReads(t *testing.T, name string) {
	t.Helper()
	orig := readFile
	readFile = func(path string) ([]byte, error) {
		if filepath.Base(path) == name {
			return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
		}
		return orig(path)
	}
	t.Cleanup(func() { readFile = orig })
}

func TestScan_ReadFailureAbortsByDefault(t *testing.T) {
	dir := endToEndDir(t)
	failReads(t, "b.go")

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			result, err := New(MustVocabulary(DefaultVocabulary), WithWorkers(workers)).Scan(context.Background(), dir)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, fs.ErrPermission)

			var scanErr ScanError
			require.True(t, errors.As(err, &scanErr))
			assert.Equal(t, "read", scanErr.Phase)
			assert.Equal(t, "b.go", scanErr.Path)
		})
	}
}

func TestScan_KeepGoingSkipsUnreadable(t *testing.T) {
	dir := endToEndDir(t)
	failReads(t, "b.go")

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			result, err := New(MustVocabulary(DefaultVocabulary),
				WithWorkers(workers),
				WithKeepGoing(true),
			).Scan(context.Background(), dir)
			require.NoError(t, err)

			require.Len(t, result.Records, 2)
			assert.Equal(t, "a.go", result.Records[0].Name)
			assert.Equal(t, "c.go", result.Records[1].Name)

			require.Len(t, result.Errors, 1)
			assert.Equal(t, "b.go", result.Errors[0].Path)
			assert.Contains(t, result.Errors[0].Error(), "[read] b.go")
		})
	}
}

func TestScan_InvalidUTF8IsAReadFailure(t *testing.T) {
	dir := endToEndDir(t)
	writeFiles(t, dir, map[string]string{"bad.go": "type Agent \xff\xfe struct{}"})

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			result, err := New(MustVocabulary(DefaultVocabulary), WithWorkers(workers)).Scan(context.Background(), dir)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidEncoding)

			var scanErr ScanError
			require.True(t, errors.As(err, &scanErr))
			assert.Equal(t, "read", scanErr.Phase)
			assert.Equal(t, "bad.go", scanErr.Path)

			result, err = New(MustVocabulary(DefaultVocabulary),
				WithWorkers(workers),
				WithKeepGoing(true),
			).Scan(context.Background(), dir)
			require.NoError(t, err)
			require.Len(t, result.Records, 3)
			assert.NotContains(t, result.Index(), "bad.go")
			require.Len(t, result.Errors, 1)
			assert.Equal(t, "bad.go", result.Errors[0].Path)
			assert.ErrorIs(t, result.Errors[0], ErrInvalidEncoding)
		})
	}
}

func TestScan_ParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	vocab := MustVocabulary(DefaultVocabulary)
	files := make(map[string]string)
	for i := 0; i < 40; i++ {
		// Spread a varying number of references across the files.
		content := ""
		for j, name := range DefaultVocabulary {
			if (i+j)%(i%5+2) == 0 {
				content += name + "{}\n"
			}
		}
		files[fmt.Sprintf("f%02d.go", i)] = content
	}
	writeFiles(t, dir, files)

	seq, err := New(vocab).Scan(context.Background(), dir)
	require.NoError(t, err)
	par, err := New(vocab, WithWorkers(8)).Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, seq.Records, par.Records)
	assert.Equal(t, SortByCount(seq.Records), SortByCount(par.Records))
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze_Flags(t *testing.T) {
	vocab := MustVocabulary(DefaultVocabulary)
	tests := []struct {
		name     string
		content  string
		wantFunc bool
		wantType bool
	}{
		{"func and type", "type X int\nfunc f() {}", true, true},
		{"func only", "func main() {}", true, false},
		{"type only", "type Y struct{}", false, true},
		{"neither", "var z = 1", false, false},
		{"no trailing space", "funcs typed", false, false},
		{"inside identifier", "myfunc () subtype x", true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := Analyze("x.go", []byte(tc.content), vocab)
			assert.Equal(t, tc.wantFunc, rec.HasFunc, "HasFunc")
			assert.Equal(t, tc.wantType, rec.HasType, "HasType")
		})
	}
}

// ---------------------------------------------------------------------------
// SortByCount
// ---------------------------------------------------------------------------

func TestSortByCount_StableAscending(t *testing.T) {
	records := []FileRecord{
		{Name: "a.go", Count: 2},
		{Name: "b.go", Count: 0},
		{Name: "c.go", Count: 2},
		{Name: "d.go", Count: 1},
		{Name: "e.go", Count: 0},
	}

	sorted := SortByCount(records)

	var names []string
	for _, r := range sorted {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"b.go", "e.go", "d.go", "a.go", "c.go"}, names)

	// Input is left untouched.
	assert.Equal(t, "a.go", records[0].Name)
}

func TestSortByCount_Empty(t *testing.T) {
	assert.Empty(t, SortByCount(nil))
}

func TestResult_IndexKeysEveryRecord(t *testing.T) {
	r := &Result{Records: []FileRecord{{Name: "a.go"}, {Name: "b.go", Count: 1, Refs: []string{"Crew"}}}}
	idx := r.Index()
	assert.Len(t, idx, 2)
	assert.Equal(t, []string{"Crew"}, idx["b.go"].Refs)
}
