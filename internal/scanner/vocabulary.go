package scanner

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultVocabulary is the built-in set of core type names, in match order.
var DefaultVocabulary = []string{
	"Crew", "Agent", "Tool", "Message", "CrewExecutor",
	"MetricsCollector", "SignalRegistry", "TerminationSignal",
	"HardcodedDefaults", "TimeoutTracker", "RoutingSignal",
	"AgentBehavior", "ParallelGroupConfig", "ConfigMode", "StrictMode",
	"RoutingConfig", "AgentConfig", "CrewConfig", "AgentResponse",
	"StreamEvent", "AgentCostMetrics", "AgentMetadata", "ToolResult",
	"ModelConfig", "GracefulShutdownManager", "MetricsSnapshot",
}

// Vocabulary is an immutable, ordered set of identifiers with one
// precompiled whole-word matcher per entry.
type Vocabulary struct {
	names    []string
	matchers []*regexp.Regexp
}

// NewVocabulary builds a vocabulary from names. Duplicates are dropped,
// keeping the first occurrence. Blank names and names that are not
// identifiers are rejected.
func NewVocabulary(names []string) (*Vocabulary, error) {
	v := &Vocabulary{}
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("scanner: blank vocabulary entry")
		}
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		re, err := regexp.Compile(regexp.QuoteMeta(name))
		if err != nil {
			return nil, fmt.Errorf("compiling matcher for %q: %w", name, err)
		}
		v.names = append(v.names, name)
		v.matchers = append(v.matchers, re)
	}
	if len(v.names) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return v, nil
}

// MustVocabulary is like NewVocabulary but panics on error.
func MustVocabulary(names []string) *Vocabulary {
	v, err := NewVocabulary(names)
	if err != nil {
		panic(err)
	}
	return v
}

// Names returns a copy of the vocabulary in iteration order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of names.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Match returns every name that occurs in content as a whole word,
// in vocabulary order. The result is never nil.
//
// An occurrence is a whole word when neither neighbouring rune is a word
// rune. Word runes are Unicode letters and numbers plus the underscore, so
// "AgentÜber" does not contain Agent.
func (v *Vocabulary) Match(content []byte) []string {
	refs := []string{}
	for i, re := range v.matchers {
		for _, loc := range re.FindAllIndex(content, -1) {
			if wordBoundary(content, loc[0], loc[1]) {
				refs = append(refs, v.names[i])
				break
			}
		}
	}
	return refs
}

// wordBoundary reports whether content[start:end] is not glued to a word
// rune on either side. Undecodable bytes count as non-word.
func wordBoundary(content []byte, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRune(content[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(content) {
		if r, _ := utf8.DecodeRune(content[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isIdentifier reports whether name is a letter or underscore followed by
// word runes. Match relies on this: a skipped overlapping occurrence of an
// identifier is always glued to a word rune.
func isIdentifier(name string) bool {
	for i, r := range name {
		if r == utf8.RuneError {
			return false
		}
		if i == 0 && unicode.IsNumber(r) {
			return false
		}
		if !isWordRune(r) {
			return false
		}
	}
	return name != ""
}

// vocabularyFile is the on-disk shape of a vocabulary file.
type vocabularyFile struct {
	Names []string `yaml:"names"`
}

// LoadVocabularyFile reads a YAML vocabulary file of the form:
//
//	names:
//	  - Crew
//	  - Agent
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file: %w", err)
	}
	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parsing vocabulary file %s: %w", path, err)
	}
	return NewVocabulary(vf.Names)
}

// MarshalYAML renders the vocabulary in the format LoadVocabularyFile reads.
func (v *Vocabulary) MarshalYAML() (interface{}, error) {
	return vocabularyFile{Names: v.Names()}, nil
}
