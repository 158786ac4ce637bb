// Package config provides configuration loading and defaults for refscan.
package config

import "github.com/blackwell-systems/refscan/internal/scanner"

// DefaultDir is the directory scanned when none is given.
const DefaultDir = "."

// DefaultConfigDir is the default location for refscan configuration.
const DefaultConfigDir = "~/.config/refscan"

// DefaultDBName is the filename for the SQLite run history.
const DefaultDBName = "refscan.db"

// EnvPrefix is the prefix for environment variable overrides (REFSCAN_EXTENSION, ...).
const EnvPrefix = "REFSCAN"

// DefaultScan holds the default scan behavior.
var DefaultScan = Scan{
	Workers:   1,
	KeepGoing: false,
}

// DefaultReport holds the default report thresholds.
var DefaultReport = Report{
	TopN:           15,
	CandidateMax:   3,
	IndependentMax: 2,
	NameWidth:      40,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
}

// DefaultVocabulary is the built-in vocabulary.
var DefaultVocabulary = scanner.DefaultVocabulary

// DefaultExcludeNames are the build manifests skipped by default.
var DefaultExcludeNames = scanner.DefaultExcludeNames
