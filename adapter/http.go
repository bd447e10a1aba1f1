package adapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dync/credentials"
	dyncerrors "dync/errors"
	"dync/record"
)

// HTTPTable is a reference CRUDTable backed by a JSON REST resource,
// grounded on the teacher's backend/nextcloud/backend.go: one
// *http.Client per adapter instance, HTTP basic auth, explicit
// idle-connection tuning and a 30s request timeout rather than relying
// on http.DefaultClient.
type HTTPTable struct {
	Table           string // table name, used only for error context
	BaseURL         string // e.g. "https://example.com/api/tasks"
	Creds           *credentials.Credentials
	InsecureSkipTLS bool

	client *http.Client
}

func (h *HTTPTable) httpClient() *http.Client {
	if h.client == nil {
		h.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: h.InsecureSkipTLS},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 30 * time.Second,
		}
	}
	return h.client
}

func (h *HTTPTable) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("adapter: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("adapter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Creds != nil {
		req.SetBasicAuth(h.Creds.Username, h.Creds.Password)
	}
	return h.httpClient().Do(req)
}

// Add implements adapter.CRUDTable.
func (h *HTTPTable) Add(ctx context.Context, local record.Remote) (any, int64, error) {
	resp, err := h.do(ctx, http.MethodPost, "", local)
	if err != nil {
		return nil, 0, dyncerrors.NewNetworkError("add", h.Table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, 0, dyncerrors.NewNetworkError("add", h.Table, fmt.Errorf("server error status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, 0, fmt.Errorf("adapter: add rejected with status %d", resp.StatusCode)
	}

	var out struct {
		ID        any   `json:"id"`
		UpdatedAt int64 `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("adapter: decode add response: %w", err)
	}
	return out.ID, out.UpdatedAt, nil
}

// Update implements adapter.CRUDTable. A 404 is translated into ok=false
// (spec §4.3's "false declares no such remote record"), everything else
// 4xx/5xx is returned as an error.
func (h *HTTPTable) Update(ctx context.Context, id any, delta, _ record.Remote) (bool, error) {
	resp, err := h.do(ctx, http.MethodPatch, "/"+fmt.Sprint(id), delta)
	if err != nil {
		return false, dyncerrors.NewNetworkError("update", h.Table, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, dyncerrors.NewNetworkError("update", h.Table, fmt.Errorf("server error status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("adapter: update rejected with status %d", resp.StatusCode)
	}
	return true, nil
}

// Remove implements adapter.CRUDTable.
func (h *HTTPTable) Remove(ctx context.Context, id any) error {
	resp, err := h.do(ctx, http.MethodDelete, "/"+fmt.Sprint(id), nil)
	if err != nil {
		return dyncerrors.NewNetworkError("remove", h.Table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return dyncerrors.NewNetworkError("remove", h.Table, fmt.Errorf("server error status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("adapter: remove rejected with status %d", resp.StatusCode)
	}
	return nil
}

// List implements adapter.CRUDTable. Comparison is strict > per spec
// §4.3, enforced server-side; since is passed through as a query
// parameter.
func (h *HTTPTable) List(ctx context.Context, since int64) ([]record.Remote, error) {
	path := "?" + url.Values{"since": {strconv.FormatInt(since, 10)}}.Encode()
	resp, err := h.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, dyncerrors.NewNetworkError("list", h.Table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("adapter: list failed with status %d", resp.StatusCode)
	}
	var out []record.Remote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("adapter: decode list response: %w", err)
	}
	return out, nil
}

// FirstLoad implements adapter.CRUDFirstLoader: cursor is the remote id
// of the last record returned by the previous page, or nil for the
// first page.
func (h *HTTPTable) FirstLoad(ctx context.Context, cursor any) ([]record.Remote, error) {
	path := ""
	if cursor != nil {
		path = "?" + url.Values{"cursor": {fmt.Sprint(cursor)}}.Encode()
	}
	resp, err := h.do(ctx, http.MethodGet, "/first-load"+path, nil)
	if err != nil {
		return nil, dyncerrors.NewNetworkError("firstLoad", h.Table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("adapter: firstLoad failed with status %d", resp.StatusCode)
	}
	var out []record.Remote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("adapter: decode firstLoad response: %w", err)
	}
	return out, nil
}

