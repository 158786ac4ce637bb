package scanner

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultExtension is the file name suffix of scanned files.
	DefaultExtension = ".go"
	// MaxWorkers is the maximum number of concurrent readers allowed.
	MaxWorkers = 256
)

// DefaultExcludeNames are build manifests skipped even when they match the extension.
var DefaultExcludeNames = []string{"go.mod", "go.sum"}

// readFile is swapped in tests to simulate read failures.
var readFile = os.ReadFile

// Literal markers for the structural flags of a FileRecord.
const (
	funcMarker = "func "
	typeMarker = "type "
)

// Options configures discovery and scanning.
type Options struct {
	// Extension is the required file name suffix.
	Extension string

	// ExcludeNames lists exact file names that are never scanned.
	ExcludeNames []string

	// ExcludePatterns lists doublestar patterns matched against file names.
	ExcludePatterns []string

	// Workers is the number of concurrent readers. Zero or one means sequential.
	Workers int

	// KeepGoing records read failures and skips the file instead of aborting.
	KeepGoing bool

	// Logger receives per-file diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Option is a functional option for configuring a Scanner.
type Option func(*Options)

// WithExtension sets the required file name suffix.
func WithExtension(ext string) Option {
	return func(o *Options) {
		o.Extension = ext
	}
}

// WithExcludeNames replaces the excluded manifest names.
func WithExcludeNames(names []string) Option {
	return func(o *Options) {
		o.ExcludeNames = names
	}
}

// WithExcludePatterns sets doublestar patterns of files to skip.
func WithExcludePatterns(patterns []string) Option {
	return func(o *Options) {
		o.ExcludePatterns = patterns
	}
}

// WithWorkers sets the number of concurrent readers.
// Negative values are ignored.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.Workers = n
		}
	}
}

// WithKeepGoing makes read failures non-fatal.
func WithKeepGoing(keepGoing bool) Option {
	return func(o *Options) {
		o.KeepGoing = keepGoing
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func applyDefaults(opts *Options) {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.ExcludeNames == nil {
		opts.ExcludeNames = DefaultExcludeNames
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Scanner counts vocabulary references in the files of a directory.
type Scanner struct {
	vocab   *Vocabulary
	options Options
}

// New creates a scanner for the given vocabulary.
func New(vocab *Vocabulary, opts ...Option) *Scanner {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	applyDefaults(&options)
	return &Scanner{vocab: vocab, options: options}
}

// Vocabulary returns the scanner's vocabulary.
func (s *Scanner) Vocabulary() *Vocabulary {
	return s.vocab
}

// Scan discovers the qualifying files in dir and analyzes each one.
//
// By default the first read failure aborts the scan and no result is returned.
// With KeepGoing the failing file is logged, recorded in Result.Errors and
// left out of Result.Records.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	log := s.options.Logger

	files, err := DiscoverFiles(dir, s.options)
	if err != nil {
		return nil, ScanError{Err: err, Path: dir, Phase: "discovery"}
	}
	log.Debug("discovered files", "dir", dir, "count", len(files))

	var (
		records []*FileRecord
		errs    []*ScanError
	)
	if s.options.Workers > 1 {
		records, errs, err = s.scanParallel(ctx, dir, files)
	} else {
		records, errs, err = s.scanSequential(ctx, dir, files)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Dir:     dir,
		Records: make([]FileRecord, 0, len(files)),
	}
	for i := range files {
		if errs[i] != nil {
			log.Warn("skipping unreadable file", "file", files[i], "err", errs[i].Err)
			result.Errors = append(result.Errors, *errs[i])
			continue
		}
		result.Records = append(result.Records, *records[i])
	}
	result.Duration = time.Since(start)
	log.Debug("scan complete", "files", len(result.Records), "errors", len(result.Errors), "duration", result.Duration)

	return result, nil
}

func (s *Scanner) scanSequential(ctx context.Context, dir string, files []string) ([]*FileRecord, []*ScanError, error) {
	records := make([]*FileRecord, len(files))
	errs := make([]*ScanError, len(files))

	for i, name := range files {
		if ctx.Err() != nil {
			return nil, nil, ErrScanCancelled
		}
		rec, scanErr := s.scanFile(dir, name)
		if scanErr != nil {
			if !s.options.KeepGoing {
				return nil, nil, *scanErr
			}
			errs[i] = scanErr
			continue
		}
		records[i] = rec
	}
	return records, errs, nil
}

// scanParallel reads files concurrently. Each result lands in its enumeration
// slot, so output order does not depend on scheduling.
func (s *Scanner) scanParallel(ctx context.Context, dir string, files []string) ([]*FileRecord, []*ScanError, error) {
	records := make([]*FileRecord, len(files))
	errs := make([]*ScanError, len(files))

	sem := semaphore.NewWeighted(int64(s.options.Workers))
	g, gCtx := errgroup.WithContext(ctx)

	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return ErrScanCancelled
			}
			defer sem.Release(1)

			rec, scanErr := s.scanFile(dir, name)
			if scanErr != nil {
				if !s.options.KeepGoing {
					return *scanErr
				}
				errs[i] = scanErr
				return nil
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ErrScanCancelled
	}
	return records, errs, nil
}

func (s *Scanner) scanFile(dir, name string) (*FileRecord, *ScanError) {
	s.options.Logger.Debug("reading file", "file", name)
	content, err := readFile(filepath.Join(dir, name))
	if err != nil {
		return nil, &ScanError{Err: err, Path: name, Phase: "read"}
	}
	if !utf8.Valid(content) {
		return nil, &ScanError{Err: ErrInvalidEncoding, Path: name, Phase: "read"}
	}
	rec := Analyze(name, content, s.vocab)
	return &rec, nil
}

// Analyze builds the record for one file's content.
func Analyze(name string, content []byte, vocab *Vocabulary) FileRecord {
	refs := vocab.Match(content)
	return FileRecord{
		Name:    name,
		Refs:    refs,
		Count:   len(refs),
		HasFunc: bytes.Contains(content, []byte(funcMarker)),
		HasType: bytes.Contains(content, []byte(typeMarker)),
	}
}

// SortByCount returns a copy of records ordered by ascending Count.
// Ties keep their input order.
func SortByCount(records []FileRecord) []FileRecord {
	sorted := make([]FileRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count < sorted[j].Count
	})
	return sorted
}
