// Package iqr provides a synchronous HTTP client for the external IQR
// (Iterative Query Refinement) ranking engine. The engine keeps one
// in-memory session per sid and re-ranks a descriptor set from labeled
// positive/negative examples; sessions expire on the engine's own
// schedule, outside this service's control.
package iqr

import (
	"context"
	"encoding/json"
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

// Common errors for engine operations.
var (
	// ErrEngineUnavailable is returned on transport failures and 5xx
	// responses from the ranking engine.
	ErrEngineUnavailable = errors.New("ranking engine unavailable")

	// ErrNoSuchSession is returned when the engine reports no live
	// session for the requested sid.
	ErrNoSuchSession = errors.New("no such engine session")
)

// Timeouts for engine calls. Session control calls (create, refine) are
// quick; result fetches can scan the full descriptor set and get more room.
const (
	ControlTimeout = 5 * time.Second
	FetchTimeout   = 30 * time.Second
)

// RankedEntry is one (checksum, confidence) pair from the engine,
// encoded on the wire as a two-element JSON array.
type RankedEntry struct {
	Checksum   string
	Confidence float64
}

// UnmarshalJSON decodes the engine's [checksum, confidence] pair format.
func (e *RankedEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("ranked entry is not an array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("ranked entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Checksum); err != nil {
		return fmt.Errorf("ranked entry checksum: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Confidence); err != nil {
		return fmt.Errorf("ranked entry confidence: %w", err)
	}
	return nil
}

// MarshalJSON encodes the entry back into the wire pair format.
func (e RankedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Checksum, e.Confidence})
}

// Client is an HTTP client for the ranking engine.
type Client struct {
	baseURL string
	control *http.Client
	fetch   *http.Client
	logger  *slog.Logger
}

// NewClient creates a new ranking engine client for the given base URL
// (e.g. "http://localhost:8081"). Outbound requests are traced.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		control: &http.Client{Timeout: ControlTimeout, Transport: transport},
		fetch:   &http.Client{Timeout: FetchTimeout, Transport: transport},
		logger:  logger,
	}
}

// createResponse is the engine's response to a session create.
type createResponse struct {
	SID string `json:"sid"`
}

// CreateOrAttach issues a session create with the given sid. The engine
// treats create as idempotent-if-absent: a 2xx means the session was just
// created (it did not previously exist), a 4xx means a session with that
// sid is already live. Either way the effective sid is returned; a
// caller-supplied sid round-trips unchanged. Pass an empty sid to let the
// engine assign one.
func (c *Client) CreateOrAttach(ctx context.Context, sid string) (string, bool, error) {
	form := url.Values{}
	if sid != "" {
		form.Set("sid", sid)
	}

	resp, err := c.postForm(ctx, c.control, http.MethodPost, "/session", form)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var cr createResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return "", false, fmt.Errorf("%w: malformed create response: %v", ErrEngineUnavailable, err)
		}
		if cr.SID == "" {
			cr.SID = sid
		}
		return cr.SID, true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Create refused: a session with this sid is already live. With no
		// caller sid there is no session to attach to, so a refusal here is
		// an engine fault, not an attach.
		if sid == "" {
			return "", false, fmt.Errorf("%w: create without sid returned status %d", ErrEngineUnavailable, resp.StatusCode)
		}
		return sid, false, nil
	default:
		return "", false, fmt.Errorf("%w: create returned status %d", ErrEngineUnavailable, resp.StatusCode)
	}
}

// Refine submits full replacement label sets for the session and returns
// the engine's response body verbatim. Failures propagate; silent loss of
// feedback would desync the durable record from the engine.
func (c *Client) Refine(ctx context.Context, sid string, posUUIDs, negUUIDs []string) (json.RawMessage, error) {
	pos, err := encodeUUIDList(posUUIDs)
	if err != nil {
		return nil, err
	}
	neg, err := encodeUUIDList(negUUIDs)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("sid", sid)
	form.Set("pos_uuids", pos)
	form.Set("neg_uuids", neg)

	resp, err := c.postForm(ctx, c.control, http.MethodPut, "/refine", form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading refine response: %v", ErrEngineUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("engine refine failed",
			slog.String("sid", sid),
			slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: refine returned status %d", ErrEngineUnavailable, resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

// resultsResponse is the engine's ranked-results payload.
type resultsResponse struct {
	TotalResults int           `json:"total_results"`
	Results      []RankedEntry `json:"results"`
}

// FetchResults returns the engine's total match count and the ranked
// entries for the window [offset, offset+limit), already ordered by
// confidence descending.
func (c *Client) FetchResults(ctx context.Context, sid string, offset, limit int) (int, []RankedEntry, error) {
	q := url.Values{}
	q.Set("sid", sid)
	q.Set("i", strconv.Itoa(offset))
	q.Set("j", strconv.Itoa(offset+limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_results?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create results request: %w", err)
	}

	resp, err := c.fetch.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, nil, fmt.Errorf("%w: sid %s", ErrNoSuchSession, sid)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, nil, fmt.Errorf("%w: get_results returned status %d", ErrEngineUnavailable, resp.StatusCode)
	}

	var rr resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return 0, nil, fmt.Errorf("%w: malformed results response: %v", ErrEngineUnavailable, err)
	}
	return rr.TotalResults, rr.Results, nil
}

// postForm sends a form-encoded request and maps transport failures to
// ErrEngineUnavailable.
func (c *Client) postForm(ctx context.Context, client *http.Client, method, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return resp, nil
}

// encodeUUIDList JSON-encodes a label set for the engine's form fields.
// A nil set encodes as an empty array, not null.
func encodeUUIDList(uuids []string) (string, error) {
	if uuids == nil {
		uuids = []string{}
	}
	b, err := json.Marshal(uuids)
	if err != nil {
		return "", fmt.Errorf("failed to encode uuid list: %w", err)
	}
	return string(b), nil
}
