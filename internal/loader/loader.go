// Package loader fetches the screener CSV export and parses it into the
// raw table.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient download failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

const (
	defaultMaxRetries = 3
	defaultTimeout    = 15 * time.Second
	rawFileName       = "screener.csv"
)

// ErrNoCachedCSV means the download failed and no prior raw file exists
// to fall back to.
var ErrNoCachedCSV = errors.New("download failed and no cached CSV available")

// Service downloads and caches the raw screener export. Raw files live
// in per-date directories under the configured base dir so a failed
// download can fall back to the most recent prior export.
type Service struct {
	cfg    domain.LoaderConfig
	client *http.Client
}

// NewService creates a loader for the given settings.
func NewService(cfg domain.LoaderConfig) *Service {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the path of the raw CSV for date, downloading it unless a
// sufficiently fresh cached copy exists. When the download fails after
// retries the most recent cached file from any prior date is returned
// instead; with no fallback available the error wraps ErrNoCachedCSV.
func (s *Service) Fetch(ctx context.Context, date time.Time) (string, error) {
	path := filepath.Join(s.cfg.RawDir, date.Format("2006-01-02"), rawFileName)

	if s.fresh(path) {
		slog.Info("using cached CSV", "path", path)
		return path, nil
	}

	if err := s.download(ctx, path); err != nil {
		slog.Warn("download failed", "error", err)

		fallback := s.latestCached()
		if fallback == "" {
			return "", fmt.Errorf("%w: %v", ErrNoCachedCSV, err)
		}
		slog.Warn("falling back to cached CSV", "path", fallback)
		return fallback, nil
	}

	return path, nil
}

// fresh reports whether path exists and its mtime is within the cache TTL.
func (s *Service) fresh(path string) bool {
	ttlMin := s.cfg.CacheTTLMinutes
	if ttlMin <= 0 {
		ttlMin = 60
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < time.Duration(ttlMin)*time.Minute
}

func (s *Service) download(ctx context.Context, path string) error {
	if s.cfg.ExportURL == "" {
		return errors.New("export URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ExportURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	slog.Info("downloading screener CSV", "url", RedactToken(s.cfg.ExportURL))

	resp, err := s.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create raw file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write raw file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close raw file: %w", err)
	}

	return os.Rename(tmp, path)
}

// doWithRetry executes the request, retrying transient failures (network
// errors, 429, 5xx) with exponential backoff. The final failing response
// is returned to the caller for inspection.
func (s *Service) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := s.client.Do(req.Clone(ctx))
		if err == nil && !transient(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		if resp != nil {
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		slog.Debug("retrying download",
			"attempt", attempt+1,
			"backoff", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// latestCached returns the most recent raw file under the base dir, or ""
// when none exists. Per-date directory names sort chronologically.
func (s *Service) latestCached() string {
	matches, err := filepath.Glob(filepath.Join(s.cfg.RawDir, "*", rawFileName))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// ReadCSV parses a screener export into raw records keyed by the header
// row. Cell values are kept verbatim; normalization happens downstream.
func ReadCSV(r io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records []domain.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}

		rec := make(domain.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCSVFile parses the raw file at path.
func ReadCSVFile(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Query parameters whose values never belong in logs.
var sensitiveParams = map[string]bool{
	"auth":    true,
	"token":   true,
	"key":     true,
	"apikey":  true,
	"api_key": true,
}

// RedactToken replaces sensitive query parameter values in a URL so the
// export URL can be logged without leaking the auth token.
func RedactToken(raw string) string {
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	changed := false
	for name := range q {
		if sensitiveParams[strings.ToLower(name)] {
			q.Set(name, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}

	u.RawQuery = q.Encode()
	return u.String()
}
