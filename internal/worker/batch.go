package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Investigator runs the full investigation pipeline for one URL
type Investigator interface {
	Investigate(ctx context.Context, url string) (*model.InvestigationRecord, error)
}

// InvestigateJob represents one URL of a batch
type InvestigateJob struct {
	Index        int
	URL          string
	Investigator Investigator
	Timeout      time.Duration
}

// Execute executes the investigation job
func (j *InvestigateJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	record, err := j.Investigator.Investigate(ctx, j.URL)

	return &BatchResult{
		Index:    j.Index,
		URL:      j.URL,
		Record:   record,
		Duration: time.Since(start),
		Error:    err,
	}
}

// BatchResult is the outcome of investigating one URL
type BatchResult struct {
	Index    int
	URL      string
	Record   *model.InvestigationRecord
	Duration time.Duration
	Error    error
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor investigates multiple URLs concurrently
type BatchProcessor struct {
	investigator Investigator
	concurrency  int
	timeout      time.Duration
	logger       *zerolog.Logger
}

// NewBatchProcessor creates a new batch processor. A zero timeout leaves
// each URL bounded only by the caller's context.
func NewBatchProcessor(investigator Investigator, concurrency int, timeout time.Duration, logger *zerolog.Logger) *BatchProcessor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BatchProcessor{
		investigator: investigator,
		concurrency:  concurrency,
		timeout:      timeout,
		logger:       logger,
	}
}

// ProcessURLs investigates every URL and returns results in input order
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*BatchResult {
	if len(urls) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, url := range urls {
		pool.Submit(&InvestigateJob{
			Index:        i,
			URL:          url,
			Investigator: b.investigator,
			Timeout:      b.timeout,
		})
	}

	results := pool.Wait()

	batchResults := make([]*BatchResult, 0, len(results))
	for _, result := range results {
		r := result.(*BatchResult)
		if r.Error != nil {
			b.logger.Warn().Err(r.Error).Str("url", r.URL).Msg("Batch investigation failed")
		} else {
			b.logger.Info().Str("url", r.URL).Dur("duration", r.Duration).Msg("Batch investigation complete")
		}
		batchResults = append(batchResults, r)
	}

	sort.Slice(batchResults, func(i, j int) bool {
		return batchResults[i].Index < batchResults[j].Index
	})

	return batchResults
}

// ProcessFile reads URLs from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
