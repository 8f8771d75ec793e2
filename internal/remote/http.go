package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// maxEnvelopeBytes bounds a snapshot response body.
const maxEnvelopeBytes = 64 << 20

// versionHeader carries the stored version of a corrupt snapshot, so the
// next write can replace it.
const versionHeader = "X-Snapshot-Version"

// HTTPStore is a RemoteStore client for the snapshot service:
//
//	GET {base}/snapshots/{key} -> 200 envelope | 404 | 422 corrupt (+ X-Snapshot-Version)
//	PUT {base}/snapshots/{key} -> 204 | 409 version conflict
type HTTPStore struct {
	base   string
	client *http.Client
}

// NewHTTPStore creates a client for base (e.g. "http://localhost:8090").
// A nil client gets a 10 second timeout.
func NewHTTPStore(base string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStore{base: strings.TrimRight(base, "/"), client: client}
}

func (h *HTTPStore) url(docKey string) string {
	return h.base + "/snapshots/" + url.PathEscape(docKey)
}

// Fetch implements replica.RemoteStore.
func (h *HTTPStore) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(docKey), nil)
	if err != nil {
		return replica.Unavailable(fmt.Errorf("fetch %s: %w", docKey, err))
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return replica.Unavailable(fmt.Errorf("fetch %s: %w", docKey, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
		if err != nil {
			return replica.Unavailable(fmt.Errorf("fetch %s: read body: %w", docKey, err))
		}
		return DecodeEnvelope(body)
	case http.StatusNotFound:
		return replica.NotFound()
	case http.StatusUnprocessableEntity:
		var version int64
		if v := resp.Header.Get(versionHeader); v != "" {
			version, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return replica.Unavailable(fmt.Errorf("fetch %s: bad %s %q", docKey, versionHeader, v))
			}
		}
		return replica.Corrupt(version, fmt.Errorf("%w: %s: server reported corrupt snapshot", replica.ErrCorruptSnapshot, docKey))
	default:
		return replica.Unavailable(fmt.Errorf("fetch %s: unexpected status %d", docKey, resp.StatusCode))
	}
}

// Persist implements replica.RemoteStore.
func (h *HTTPStore) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	body, err := EncodeEnvelope(snap)
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url(docKey), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", replica.ErrVersionConflict, docKey)
	default:
		return fmt.Errorf("persist %s: unexpected status %d", docKey, resp.StatusCode)
	}
}
