package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/httputil"
	"github.com/tyrasd/datashader/pkg/observability"
)

// HTTPCSV is a Source that fetches a headered CSV document over HTTP once
// and then serves scans from the downloaded body. Transient fetch failures
// (network errors, 5xx responses) are retried with backoff.
type HTTPCSV struct {
	URL       string
	BatchSize int
	Client    *http.Client // http.DefaultClient if nil

	header []string
	body   []byte
}

// FetchCSV downloads url and returns a source over its records.
func FetchCSV(ctx context.Context, url string) (*HTTPCSV, error) {
	s := &HTTPCSV{URL: url}
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HTTPCSV) fetch(ctx context.Context) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	var host, path string
	if u, err := url.Parse(s.URL); err == nil {
		host, path = u.Host, u.Path
	}
	hooks := observability.HTTP()

	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return err
		}
		hooks.OnRequest(ctx, http.MethodGet, host, path)
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			hooks.OnError(ctx, http.MethodGet, host, path, err)
			return httputil.Retryable(err)
		}
		hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return httputil.Retryable(fmt.Errorf("server error: %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status: %s", resp.Status)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return httputil.Retryable(err)
		}
		s.body = body
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSource, err, "fetching %s", s.URL)
	}

	header, err := csv.NewReader(bytes.NewReader(s.body)).Read()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSource, err, "reading header of %s", s.URL)
	}
	s.header = header
	return nil
}

// Columns implements Source.
func (s *HTTPCSV) Columns() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

// Batches implements Source. Scans replay the downloaded body.
func (s *HTTPCSV) Batches(ctx context.Context) (Cursor, error) {
	if s.body == nil {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}
	r := csv.NewReader(bytes.NewReader(s.body))
	r.FieldsPerRecord = len(s.header)
	if _, err := r.Read(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "reading header of %s", s.URL)
	}
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &httpCursor{header: s.header, r: r, size: size}, nil
}

type httpCursor struct {
	header []string
	r      *csv.Reader
	size   int
	done   bool
}

func (c *httpCursor) Next(ctx context.Context) (Batch, error) {
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([][]string, 0, c.size)
	for len(rows) < c.size {
		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "reading CSV body")
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return &rowBatch{header: c.header, rows: rows}, nil
}

func (c *httpCursor) Close() error { return nil }
