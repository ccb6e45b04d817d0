// Package remote implements the HTTP client for the sync server. All
// responses arrive in a {code,data,ts} envelope; the client unwraps it and
// maps transport failures and auth rejections onto the package's sentinel
// errors.
package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/pkg/api"
)

// Bodies above this size are gzip-compressed before upload.
const gzipThreshold = 1024

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI is the surface the sync engine and controller depend on.
type ClientAPI interface {
	BackupInit(ctx context.Context) (*api.BackupInitResponse, error)
	FullSync(ctx context.Context, tableName string) (*api.FullSyncResponse, error)
	IncrementalSync(ctx context.Context, tableName string, changes []api.ChangeUpload) (*api.IncrementalSyncResponse, error)
	GetChanges(ctx context.Context, since int64, limit int) (*api.GetChangesResponse, error)
	StartFullSync(ctx context.Context, tableName string, pageSize int) (*api.FullSyncSession, error)
	FullSyncBatch(ctx context.Context, sessionID string, page int) (*api.FullSyncBatchResponse, error)
	FinishFullSync(ctx context.Context, sessionID string) (*api.FullSyncFinishResponse, error)
	CloseIdleConnections()
}

// AuthProvider supplies credentials for outgoing requests and gets notified
// when the server declares them invalid.
type AuthProvider interface {
	GetAuthToken(ctx context.Context) (string, error)
	GetDeviceID(ctx context.Context) (string, error)
	ClearAuthInfo(ctx context.Context) error
}

// Client talks to the sync server over a shared keep-alive pool.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       AuthProvider
	logger     *slog.Logger
}

var _ ClientAPI = (*Client)(nil)

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string, auth AuthProvider, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BackupInit registers this device with the server and fetches the table
// mappings the server knows how to sync.
func (c *Client) BackupInit(ctx context.Context) (*api.BackupInitResponse, error) {
	deviceID, err := c.auth.GetDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}

	var resp api.BackupInitResponse
	req := api.BackupInitRequest{DeviceID: deviceID}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/backup-init", req, &resp); err != nil {
		return nil, fmt.Errorf("backup init request failed: %w", err)
	}
	return &resp, nil
}

// FullSync downloads a complete snapshot of one table in a single response.
func (c *Client) FullSync(ctx context.Context, tableName string) (*api.FullSyncResponse, error) {
	deviceID, err := c.auth.GetDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}

	var resp api.FullSyncResponse
	req := api.FullSyncRequest{TableName: tableName, DeviceID: deviceID}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/full-sync", req, &resp); err != nil {
		return nil, fmt.Errorf("full sync request failed: %w", err)
	}
	return &resp, nil
}

// IncrementalSync uploads a batch of local changes for one table and returns
// which ids the server accepted.
func (c *Client) IncrementalSync(ctx context.Context, tableName string, changes []api.ChangeUpload) (*api.IncrementalSyncResponse, error) {
	deviceID, err := c.auth.GetDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}

	var resp api.IncrementalSyncResponse
	req := api.IncrementalSyncRequest{
		TableName: tableName,
		Data:      changes,
		DeviceID:  deviceID,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/incremental-sync", req, &resp); err != nil {
		return nil, fmt.Errorf("incremental sync request failed: %w", err)
	}
	return &resp, nil
}

// GetChanges fetches server-side changes after the given sequence id.
func (c *Client) GetChanges(ctx context.Context, since int64, limit int) (*api.GetChangesResponse, error) {
	deviceID, err := c.auth.GetDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}

	var resp api.GetChangesResponse
	path := fmt.Sprintf("/sync/changes?since=%d&limit=%d&device_id=%s", since, limit, deviceID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get changes request failed: %w", err)
	}
	return &resp, nil
}

// StartFullSync opens a paged download session for one table.
func (c *Client) StartFullSync(ctx context.Context, tableName string, pageSize int) (*api.FullSyncSession, error) {
	var resp api.FullSyncSession
	req := api.FullSyncStartRequest{TableName: tableName, PageSize: pageSize}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/full-sync/start", req, &resp); err != nil {
		return nil, fmt.Errorf("start full sync request failed: %w", err)
	}
	return &resp, nil
}

// FullSyncBatch fetches one page of an open full-sync session.
func (c *Client) FullSyncBatch(ctx context.Context, sessionID string, page int) (*api.FullSyncBatchResponse, error) {
	var resp api.FullSyncBatchResponse
	req := api.FullSyncBatchRequest{SessionID: sessionID, Page: page}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/full-sync/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("full sync batch request failed: %w", err)
	}
	return &resp, nil
}

// FinishFullSync closes a full-sync session on the server.
func (c *Client) FinishFullSync(ctx context.Context, sessionID string) (*api.FullSyncFinishResponse, error) {
	var resp api.FullSyncFinishResponse
	path := "/sync/full-sync/finish/" + sessionID
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("finish full sync request failed: %w", err)
	}
	return &resp, nil
}

// CloseIdleConnections releases the keep-alive socket pool. Called on
// controller shutdown.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	compressed := false
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		if len(jsonData) > gzipThreshold {
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			if _, err := gz.Write(jsonData); err != nil {
				return fmt.Errorf("failed to compress request body: %w", err)
			}
			if err := gz.Close(); err != nil {
				return fmt.Errorf("failed to compress request body: %w", err)
			}
			bodyReader = &buf
			compressed = true
		} else {
			bodyReader = bytes.NewReader(jsonData)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if compressed {
			req.Header.Set("Content-Encoding", "gzip")
		}
	}

	token, err := c.auth.GetAuthToken(ctx)
	if err != nil {
		return fmt.Errorf("get auth token: %w", ErrNotAuthenticated)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if deviceID, err := c.auth.GetDeviceID(ctx); err == nil {
		req.Header.Set("X-Device-ID", deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isNetworkError(err) {
			c.logger.Debug("server unreachable", "url", url, "error", err)
			return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if clearErr := c.auth.ClearAuthInfo(ctx); clearErr != nil {
			c.logger.Error("failed to clear auth info", "error", clearErr)
		}
		return fmt.Errorf("server rejected credentials: %w", ErrUnauthorized)
	}

	var env api.Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}

	if !env.OK() {
		var errData api.ErrorData
		if err := json.Unmarshal(env.Data, &errData); err == nil && errData.Message != "" {
			return fmt.Errorf("server error (%d): %s", env.Code, errData.Message)
		}
		return fmt.Errorf("server error (%d)", env.Code)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
