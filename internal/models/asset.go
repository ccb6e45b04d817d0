// Package models defines the synced business entities and the change-log
// record types shared across the sync subsystem.
package models

import (
	"encoding/json"
	"time"
)

// Sync table names. These are the logical names changes are logged and
// uploaded under; they are distinct from the physical table names so the
// server-side mapping can evolve independently of the local schema.
const (
	SyncTableAssets = "t_assets_sync"
	SyncTableChains = "t_asset_chains_sync"

	TableAssets = "t_assets"
	TableChains = "t_asset_chains"
)

// SyncTables lists every logical table participating in sync, in upload order.
var SyncTables = []string{SyncTableAssets, SyncTableChains}

// PhysicalTable maps a logical sync-table name to its physical table.
func PhysicalTable(syncTable string) string {
	switch syncTable {
	case SyncTableAssets:
		return TableAssets
	case SyncTableChains:
		return TableChains
	}
	return ""
}

// Asset is a synced connection target (host credentials and metadata).
// It is identified across devices by UUID; the local autoincrement id never
// leaves the device. Version increases monotonically on every mutation that
// is allowed to propagate.
type Asset struct {
	ID          int64     `json:"-"`
	UUID        string    `json:"uuid"`
	Label       string    `json:"label"`
	AssetIP     string    `json:"asset_ip"`
	Username    string    `json:"username"`
	Port        int       `json:"port"`
	AssetType   string    `json:"asset_type"`
	GroupName   string    `json:"group_name"`
	AuthType    string    `json:"auth_type"`
	Password    string    `json:"password,omitempty"`
	KeyChainID  string    `json:"key_chain_id,omitempty"`
	Favorite    bool      `json:"favorite"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnmarshalJSON tolerates the numeric favorite flag produced by the capture
// triggers (SQLite stores booleans as 0/1) alongside a plain JSON bool.
func (a *Asset) UnmarshalJSON(b []byte) error {
	type alias Asset
	aux := struct {
		*alias
		Favorite any `json:"favorite"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	switch v := aux.Favorite.(type) {
	case bool:
		a.Favorite = v
	case float64:
		a.Favorite = v != 0
	case string:
		a.Favorite = v == "1" || v == "true"
	}
	return nil
}

// AssetChain is a synced credential chain (key material referenced by assets).
type AssetChain struct {
	ID         int64     `json:"-"`
	UUID       string    `json:"uuid"`
	ChainName  string    `json:"chain_name"`
	ChainType  string    `json:"chain_type"`
	PrivateKey string    `json:"private_key,omitempty"`
	PublicKey  string    `json:"public_key,omitempty"`
	Passphrase string    `json:"passphrase,omitempty"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
