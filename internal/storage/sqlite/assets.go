package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
)

// GetAssetByUUID returns the asset identified by uuid.
func (s *Store) GetAssetByUUID(ctx context.Context, uuid string) (*models.Asset, error) {
	query := `SELECT id, uuid, label, asset_ip, username, port, asset_type,
		group_name, auth_type, password, key_chain_id, favorite, version,
		created_at, updated_at
		FROM t_assets WHERE uuid = ?`

	asset := &models.Asset{}
	var favorite int
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, uuid).Scan(
		&asset.ID, &asset.UUID, &asset.Label, &asset.AssetIP, &asset.Username,
		&asset.Port, &asset.AssetType, &asset.GroupName, &asset.AuthType,
		&asset.Password, &asset.KeyChainID, &favorite, &asset.Version,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", uuid, err)
	}

	asset.Favorite = favorite != 0
	asset.CreatedAt = parseTime(createdAt)
	asset.UpdatedAt = parseTime(updatedAt)
	return asset, nil
}

// GetAssetChainByUUID returns the asset chain identified by uuid.
func (s *Store) GetAssetChainByUUID(ctx context.Context, uuid string) (*models.AssetChain, error) {
	query := `SELECT id, uuid, chain_name, chain_type, private_key, public_key,
		passphrase, version, created_at, updated_at
		FROM t_asset_chains WHERE uuid = ?`

	chain := &models.AssetChain{}
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, uuid).Scan(
		&chain.ID, &chain.UUID, &chain.ChainName, &chain.ChainType,
		&chain.PrivateKey, &chain.PublicKey, &chain.Passphrase, &chain.Version,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset chain %s: %w", uuid, err)
	}

	chain.CreatedAt = parseTime(createdAt)
	chain.UpdatedAt = parseTime(updatedAt)
	return chain, nil
}

// UpsertAsset creates or updates an asset. A row matched by uuid wins over a
// row matched by the natural key (ip+user+port+label+type): when only a
// natural-key match exists, that row is reconciled to the incoming uuid
// instead of inserting a duplicate. The version never regresses.
func (s *Store) UpsertAsset(ctx context.Context, asset *models.Asset) error {
	now := time.Now()
	if asset.Version < 1 {
		asset.Version = 1
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now

	var existingUUID string
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid FROM t_assets WHERE uuid = ?`, asset.UUID).Scan(&existingUUID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check asset %s: %w", asset.UUID, err)
	}

	if existingUUID == "" {
		// No uuid match; a natural-key match absorbs the write so two
		// devices describing the same host converge on one row.
		err = s.db.QueryRowContext(ctx,
			`SELECT uuid FROM t_assets
			 WHERE asset_ip = ? AND username = ? AND port = ? AND label = ? AND asset_type = ?
			 LIMIT 1`,
			asset.AssetIP, asset.Username, asset.Port, asset.Label, asset.AssetType,
		).Scan(&existingUUID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check asset natural key: %w", err)
		}
	}

	if existingUUID != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE t_assets SET
				uuid = ?, label = ?, asset_ip = ?, username = ?, port = ?,
				asset_type = ?, group_name = ?, auth_type = ?, password = ?,
				key_chain_id = ?, favorite = ?,
				version = CASE WHEN ? > version THEN ? ELSE version END,
				updated_at = ?
			 WHERE uuid = ?`,
			asset.UUID, asset.Label, asset.AssetIP, asset.Username, asset.Port,
			asset.AssetType, asset.GroupName, asset.AuthType, asset.Password,
			asset.KeyChainID, boolToInt(asset.Favorite),
			asset.Version, asset.Version,
			formatTime(asset.UpdatedAt),
			existingUUID,
		)
		if err != nil {
			return fmt.Errorf("failed to update asset %s: %w", asset.UUID, err)
		}
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO t_assets (
				uuid, label, asset_ip, username, port, asset_type, group_name,
				auth_type, password, key_chain_id, favorite, version,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			asset.UUID, asset.Label, asset.AssetIP, asset.Username, asset.Port,
			asset.AssetType, asset.GroupName, asset.AuthType, asset.Password,
			asset.KeyChainID, boolToInt(asset.Favorite), asset.Version,
			formatTime(asset.CreatedAt), formatTime(asset.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", asset.UUID, err)
		}
	}

	s.notifyLocalChange(models.SyncTableAssets)
	return nil
}

// UpsertAssetChain creates or updates an asset chain, reconciling a
// name+type natural-key match toward the incoming uuid.
func (s *Store) UpsertAssetChain(ctx context.Context, chain *models.AssetChain) error {
	now := time.Now()
	if chain.Version < 1 {
		chain.Version = 1
	}
	if chain.CreatedAt.IsZero() {
		chain.CreatedAt = now
	}
	chain.UpdatedAt = now

	var existingUUID string
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid FROM t_asset_chains WHERE uuid = ?`, chain.UUID).Scan(&existingUUID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check asset chain %s: %w", chain.UUID, err)
	}

	if existingUUID == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT uuid FROM t_asset_chains
			 WHERE chain_name = ? AND chain_type = ? LIMIT 1`,
			chain.ChainName, chain.ChainType,
		).Scan(&existingUUID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check asset chain natural key: %w", err)
		}
	}

	if existingUUID != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE t_asset_chains SET
				uuid = ?, chain_name = ?, chain_type = ?, private_key = ?,
				public_key = ?, passphrase = ?,
				version = CASE WHEN ? > version THEN ? ELSE version END,
				updated_at = ?
			 WHERE uuid = ?`,
			chain.UUID, chain.ChainName, chain.ChainType, chain.PrivateKey,
			chain.PublicKey, chain.Passphrase,
			chain.Version, chain.Version,
			formatTime(chain.UpdatedAt),
			existingUUID,
		)
		if err != nil {
			return fmt.Errorf("failed to update asset chain %s: %w", chain.UUID, err)
		}
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO t_asset_chains (
				uuid, chain_name, chain_type, private_key, public_key,
				passphrase, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chain.UUID, chain.ChainName, chain.ChainType, chain.PrivateKey,
			chain.PublicKey, chain.Passphrase, chain.Version,
			formatTime(chain.CreatedAt), formatTime(chain.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert asset chain %s: %w", chain.UUID, err)
		}
	}

	s.notifyLocalChange(models.SyncTableChains)
	return nil
}

// DeleteAssetByUUID removes an asset; the delete trigger captures the
// pre-image.
func (s *Store) DeleteAssetByUUID(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM t_assets WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", uuid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrAssetNotFound
	}

	s.notifyLocalChange(models.SyncTableAssets)
	return nil
}

// DeleteAssetChainByUUID removes an asset chain.
func (s *Store) DeleteAssetChainByUUID(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM t_asset_chains WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete asset chain %s: %w", uuid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrChainNotFound
	}

	s.notifyLocalChange(models.SyncTableChains)
	return nil
}

// SetVersion writes the entity version under the remote-apply guard so the
// version write is not itself captured as a new change.
func (s *Store) SetVersion(ctx context.Context, table, uuid string, version int64) error {
	physical := models.PhysicalTable(table)
	if physical == "" {
		return fmt.Errorf("set version on %q: %w", table, storage.ErrUnknownTable)
	}

	return s.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		query := fmt.Sprintf(
			`UPDATE %s SET version = ?, updated_at = ? WHERE uuid = ?`, physical)
		res, err := s.db.ExecContext(ctx, query, version, formatTime(time.Now()), uuid)
		if err != nil {
			return fmt.Errorf("failed to set version on %s/%s: %w", table, uuid, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFoundFor(table)
		}
		return nil
	})
}

// BumpVersion increments the entity version under the remote-apply guard
// and returns the new value.
func (s *Store) BumpVersion(ctx context.Context, table, uuid string) (int64, error) {
	physical := models.PhysicalTable(table)
	if physical == "" {
		return 0, fmt.Errorf("bump version on %q: %w", table, storage.ErrUnknownTable)
	}

	var version int64
	err := s.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		query := fmt.Sprintf(
			`UPDATE %s SET version = version + 1, updated_at = ? WHERE uuid = ?`, physical)
		res, err := s.db.ExecContext(ctx, query, formatTime(time.Now()), uuid)
		if err != nil {
			return fmt.Errorf("failed to bump version on %s/%s: %w", table, uuid, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFoundFor(table)
		}

		sel := fmt.Sprintf(`SELECT version FROM %s WHERE uuid = ?`, physical)
		if err := s.db.QueryRowContext(ctx, sel, uuid).Scan(&version); err != nil {
			return fmt.Errorf("failed to read bumped version on %s/%s: %w", table, uuid, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func notFoundFor(table string) error {
	if table == models.SyncTableChains {
		return storage.ErrChainNotFound
	}
	return storage.ErrAssetNotFound
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
