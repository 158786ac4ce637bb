package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/refscan/internal/scanner"
)

// Config is the top-level refscan configuration.
type Config struct {
	Dir             string   `mapstructure:"dir"`
	Extension       string   `mapstructure:"extension"`
	ExcludeNames    []string `mapstructure:"exclude_names"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	Vocabulary      []string `mapstructure:"vocabulary"`
	VocabularyFile  string   `mapstructure:"vocabulary_file"`
	Scan            Scan     `mapstructure:"scan"`
	Report          Report   `mapstructure:"report"`
	Output          Output   `mapstructure:"output"`
	DBPath          string   `mapstructure:"db_path"`
}

// Scan defines how files are read.
type Scan struct {
	Workers   int  `mapstructure:"workers"`
	KeepGoing bool `mapstructure:"keep_going"`
}

// Report defines the thresholds of the ranked report.
type Report struct {
	TopN           int `mapstructure:"top_n"`
	CandidateMax   int `mapstructure:"candidate_max"`
	IndependentMax int `mapstructure:"independent_max"`
	NameWidth      int `mapstructure:"name_width"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location),
// a .env file in the working directory and REFSCAN_* environment variables,
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("dir", DefaultDir)
	v.SetDefault("extension", scanner.DefaultExtension)
	v.SetDefault("exclude_names", DefaultExcludeNames)
	v.SetDefault("exclude_patterns", []string{})
	v.SetDefault("vocabulary", DefaultVocabulary)
	v.SetDefault("vocabulary_file", "")
	v.SetDefault("scan.workers", DefaultScan.Workers)
	v.SetDefault("scan.keep_going", DefaultScan.KeepGoing)
	v.SetDefault("report.top_n", DefaultReport.TopN)
	v.SetDefault("report.candidate_max", DefaultReport.CandidateMax)
	v.SetDefault("report.independent_max", DefaultReport.IndependentMax)
	v.SetDefault("report.name_width", DefaultReport.NameWidth)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("db_path", filepath.Join(DefaultConfigDir, DefaultDBName))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.VocabularyFile = expandPath(cfg.VocabularyFile)
	cfg.Dir = expandPath(cfg.Dir)

	return &cfg, nil
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Extension == "" {
		return fmt.Errorf("config: extension must not be empty")
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("config: scan.workers must be >= 0, got %d", c.Scan.Workers)
	}
	if c.Report.TopN < 0 {
		return fmt.Errorf("config: report.top_n must be >= 0, got %d", c.Report.TopN)
	}
	if c.Report.NameWidth < 0 {
		return fmt.Errorf("config: report.name_width must be >= 0, got %d", c.Report.NameWidth)
	}
	return scanner.ValidatePatterns(c.ExcludePatterns)
}

// LoadVocabulary builds the active vocabulary: the vocabulary file when one is
// configured, otherwise the inline list.
func (c *Config) LoadVocabulary() (*scanner.Vocabulary, error) {
	if c.VocabularyFile != "" {
		return scanner.LoadVocabularyFile(c.VocabularyFile)
	}
	return scanner.NewVocabulary(c.Vocabulary)
}

// ScanOptions converts the configuration into scanner options.
func (c *Config) ScanOptions() []scanner.Option {
	return []scanner.Option{
		scanner.WithExtension(c.Extension),
		scanner.WithExcludeNames(c.ExcludeNames),
		scanner.WithExcludePatterns(c.ExcludePatterns),
		scanner.WithWorkers(c.Scan.Workers),
		scanner.WithKeepGoing(c.Scan.KeepGoing),
	}
}
