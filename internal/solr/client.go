// Package solr provides a synchronous client for the document index.
// The index resolves content checksums to documents; one checksum may map
// to zero or more documents, and the returned order is index-defined.
package solr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrIndexUnavailable is returned on transport failures and non-2xx
// responses from the document index.
var ErrIndexUnavailable = errors.New("document index unavailable")

// QueryTimeout bounds a single batch lookup.
const QueryTimeout = 10 * time.Second

// maxRows caps a single batch resolve. A checksum can fan out to several
// duplicate-group documents, so this must exceed the largest result page.
const maxRows = 1000

// Client is an HTTP client for the document index.
type Client struct {
	baseURL string
	field   string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a new index client. field names the checksum field
// used for batch lookups (e.g. "sha1sum_s_md").
func NewClient(baseURL, field string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		field:   field,
		client: &http.Client{
			Timeout:   QueryTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// ChecksumField returns the configured checksum field name.
func (c *Client) ChecksumField() string {
	return c.field
}

// ResolveByChecksum performs a batch lookup of the given checksums and
// returns every document whose checksum field matches any of them. The
// result order is index-defined and must not be assumed to align with the
// input order.
func (c *Client) ResolveByChecksum(ctx context.Context, checksums []string) ([]Document, error) {
	if len(checksums) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", c.fieldQuery(checksums))
	q.Set("wt", "json")
	q.Set("rows", strconv.Itoa(maxRows))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create select request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("index select failed",
			slog.Int("status", resp.StatusCode),
			slog.Int("checksums", len(checksums)))
		return nil, fmt.Errorf("%w: select returned status %d", ErrIndexUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading select response: %v", ErrIndexUnavailable, err)
	}
	sr, err := parseSelectResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed select response: %v", ErrIndexUnavailable, err)
	}
	return sr.Response.Docs, nil
}

// fieldQuery builds a disjunctive field query: field:("a" OR "b" OR ...).
func (c *Client) fieldQuery(checksums []string) string {
	quoted := make([]string, len(checksums))
	for i, sum := range checksums {
		quoted[i] = `"` + escapeQueryValue(sum) + `"`
	}
	return c.field + ":(" + strings.Join(quoted, " OR ") + ")"
}

// escapeQueryValue escapes backslashes and quotes inside a phrase query.
func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
