package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVocabulary_WholeWordMatching(t *testing.T) {
	vocab := MustVocabulary([]string{"Agent", "Tool", "Crew"})

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"standalone token", "var a Agent", []string{"Agent"}},
		{"suffix glued", "var a AgentX", []string{}},
		{"prefix glued", "var a MyAgent", []string{}},
		{"underscore is a word char", "Agent_ _Agent", []string{}},
		{"digit is a word char", "Agent2", []string{}},
		{"punctuation boundaries", "(*Agent).Run(Tool{})", []string{"Agent", "Tool"}},
		{"pointer and slice", "[]*Crew", []string{"Crew"}},
		{"start and end of text", "Crew", []string{"Crew"}},
		{"vocabulary order not text order", "Crew Tool Agent", []string{"Agent", "Tool", "Crew"}},
		{"repeated occurrences count once", "Tool Tool Tool", []string{"Tool"}},
		{"empty content", "", []string{}},
		{"unicode letter after", "AgentÜber", []string{}},
		{"unicode letter before", "éAgent", []string{}},
		{"unicode digit after", "Agent٣", []string{}},
		{"later occurrence is whole", "AgentÜber Agent", []string{"Agent"}},
		{"unicode punctuation", "«Agent»", []string{"Agent"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, vocab.Match([]byte(tc.content)))
		})
	}
}

func TestVocabulary_LongerNameDoesNotImplyShorter(t *testing.T) {
	vocab := MustVocabulary(DefaultVocabulary)
	refs := vocab.Match([]byte("func f() ToolResult { return ToolResult{} }"))
	assert.Equal(t, []string{"ToolResult"}, refs)
}

func TestNewVocabulary_RejectsNonIdentifiers(t *testing.T) {
	for _, name := range []string{"A.B", "Crew,Agent", "1Tool", "Agent Tool", "a-b"} {
		_, err := NewVocabulary([]string{"Crew", name})
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	vocab, err := NewVocabulary([]string{"_private", "Ünïcode", "Tool2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ünïcode"}, vocab.Match([]byte("x := Ünïcode{}")))
}

func TestNewVocabulary_DeduplicatesKeepingFirst(t *testing.T) {
	vocab, err := NewVocabulary([]string{"Tool", "Crew", "Tool", " Crew "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tool", "Crew"}, vocab.Names())
	assert.Equal(t, 2, vocab.Len())
}

func TestNewVocabulary_Errors(t *testing.T) {
	_, err := NewVocabulary(nil)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = NewVocabulary([]string{"Crew", "  "})
	assert.Error(t, err)
}

func TestVocabulary_NamesIsACopy(t *testing.T) {
	vocab := MustVocabulary([]string{"Crew", "Agent"})
	names := vocab.Names()
	names[0] = "Mutated"
	assert.Equal(t, []string{"Crew", "Agent"}, vocab.Names())
}

func TestDefaultVocabulary(t *testing.T) {
	vocab := MustVocabulary(DefaultVocabulary)
	assert.Equal(t, 26, vocab.Len())
	assert.Equal(t, "Crew", vocab.Names()[0])
}

func TestLoadVocabularyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("names:\n  - Widget\n  - Gadget\n"), 0o644))

	vocab, err := LoadVocabularyFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget", "Gadget"}, vocab.Names())
}

func TestLoadVocabularyFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadVocabularyFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("names: []\n"), 0o644))
	_, err = LoadVocabularyFile(empty)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("names: [unterminated\n"), 0o644))
	_, err = LoadVocabularyFile(bad)
	assert.Error(t, err)
}

func TestVocabulary_YAMLRoundTrip(t *testing.T) {
	vocab := MustVocabulary([]string{"Crew", "Agent", "Tool"})
	data, err := yaml.Marshal(vocab)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadVocabularyFile(path)
	require.NoError(t, err)
	assert.Equal(t, vocab.Names(), loaded.Names())
}
