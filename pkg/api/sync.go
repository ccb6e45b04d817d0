package api

import "encoding/json"

// BackupInitRequest asks the server to prepare sync state for a device.
type BackupInitRequest struct {
	DeviceID string `json:"device_id"`
}

// BackupInitResponse reports the server-side table mapping for this device.
type BackupInitResponse struct {
	Message       string            `json:"message"`
	TableMappings map[string]string `json:"table_mappings"`
}

// FullSyncRequest requests a complete single-shot snapshot of one table.
type FullSyncRequest struct {
	TableName string `json:"table_name"`
	DeviceID  string `json:"device_id"`
}

// FullSyncResponse carries a complete table snapshot.
type FullSyncResponse struct {
	TableName string            `json:"table_name"`
	Rows      []json.RawMessage `json:"rows"`
}

// FullSyncStartRequest opens a paged full-sync session for one table.
type FullSyncStartRequest struct {
	TableName string `json:"table_name"`
	PageSize  int    `json:"page_size"`
}

// FullSyncSession identifies an open paged full-sync session.
type FullSyncSession struct {
	SessionID  string `json:"session_id"`
	TableName  string `json:"table_name"`
	TotalPages int    `json:"total_pages"`
	TotalRows  int    `json:"total_rows"`
	PageSize   int    `json:"page_size"`
}

// FullSyncBatchRequest fetches one page of an open full-sync session.
type FullSyncBatchRequest struct {
	SessionID string `json:"session_id"`
	Page      int    `json:"page"`
}

// FullSyncBatchResponse is one page of rows from a full-sync session.
type FullSyncBatchResponse struct {
	Page    int               `json:"page"`
	HasMore bool              `json:"has_more"`
	Rows    []json.RawMessage `json:"rows"`
}

// FullSyncFinishResponse acknowledges session teardown.
type FullSyncFinishResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChangeUpload is one captured local change shipped to the server.
type ChangeUpload struct {
	ID            string          `json:"id"`
	TableName     string          `json:"table_name"`
	RecordUUID    string          `json:"record_uuid"`
	OperationType string          `json:"operation_type"`
	ChangeData    json.RawMessage `json:"change_data,omitempty"`
	BeforeData    json.RawMessage `json:"before_data,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// IncrementalSyncRequest uploads a batch of pending changes for one table.
type IncrementalSyncRequest struct {
	TableName string         `json:"table_name"`
	Data      []ChangeUpload `json:"data"`
	DeviceID  string         `json:"device_id"`
}

// RejectedChange reports a change the server refused to apply.
type RejectedChange struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// IncrementalSyncResponse acknowledges an incremental upload.
type IncrementalSyncResponse struct {
	SyncedCount int              `json:"synced_count"`
	SyncedIDs   []string         `json:"synced_ids"`
	Rejected    []RejectedChange `json:"rejected,omitempty"`
}

// CloudChange is one server-originated change delivered to the client.
type CloudChange struct {
	SequenceID    int64           `json:"sequence_id"`
	TableName     string          `json:"table_name"`
	RecordUUID    string          `json:"record_uuid"`
	OperationType string          `json:"operation_type"`
	ChangeData    json.RawMessage `json:"change_data,omitempty"`
	Version       int64           `json:"version"`
}

// GetChangesResponse is the incremental download payload.
type GetChangesResponse struct {
	Changes        []CloudChange `json:"changes"`
	LatestSequence int64         `json:"latest_sequence"`
}
