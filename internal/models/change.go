package models

import (
	"encoding/json"
	"time"
)

// Operation types captured by the change-log triggers.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Sync statuses a change record moves through. A record starts pending and
// is only ever marked, never deleted: the change log is an append-only audit
// trail.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusFailed  = "failed"
)

// ValidOperation reports whether op is a known change operation.
func ValidOperation(op string) bool {
	return op == OpInsert || op == OpUpdate || op == OpDelete
}

// ChangeRecord is one row-level mutation captured by the data-layer
// triggers. Immutable once written except for SyncStatus and ErrorMessage.
type ChangeRecord struct {
	ID            string          `json:"id"`
	TableName     string          `json:"table_name"`
	RecordUUID    string          `json:"record_uuid"`
	OperationType string          `json:"operation_type"`
	ChangeData    json.RawMessage `json:"change_data,omitempty"`
	BeforeData    json.RawMessage `json:"before_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	SyncStatus    string          `json:"sync_status"`
	RetryCount    int             `json:"retry_count"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// DecodeData unmarshals the post-image into a generic map.
// Returns nil for DELETE records, which carry no post-image.
func (c *ChangeRecord) DecodeData() (map[string]any, error) {
	if len(c.ChangeData) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.ChangeData, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeBefore unmarshals the pre-image into a generic map.
// Returns nil for INSERT records, which carry no pre-image.
func (c *ChangeRecord) DecodeBefore() (map[string]any, error) {
	if len(c.BeforeData) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.BeforeData, &m); err != nil {
		return nil, err
	}
	return m, nil
}
