package metastore

import (
	"context"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// AppendQueryHistory records one execution and prunes the tenant's history
// down to the configured limit, dropping the oldest entries first.
func (s *Store) AppendQueryHistory(ctx context.Context, entry *QueryHistoryEntry) apperrors.Error {
	if entry.TenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}
	if entry.ID == "" {
		entry.ID = gwcommon.NewEntryId()
	}

	query := `
		INSERT INTO query_history
			(id, tenant_id, sql, status, duration_ms, row_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING executed_at`
	err := s.db.QueryRowContext(ctx, query,
		entry.ID, entry.TenantID, entry.SQL, entry.Status,
		entry.DurationMs, entry.RowCount, entry.ErrorMessage).
		Scan(&entry.ExecutedAt)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", entry.TenantID.String()).
			Msg("unable to append query history")
		return dberror.ErrDatabase.Err(err)
	}

	prune := `
		DELETE FROM query_history
		WHERE tenant_id = $1
		  AND id NOT IN (
			SELECT id FROM query_history
			WHERE tenant_id = $1
			ORDER BY executed_at DESC, id DESC
			LIMIT $2
		  )`
	if _, err := s.db.ExecContext(ctx, prune, entry.TenantID, config.Config().QueryHistoryLimit); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", entry.TenantID.String()).
			Msg("unable to prune query history")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// ListQueryHistory returns the tenant's history, newest first.
func (s *Store) ListQueryHistory(ctx context.Context, tenantID types.TenantId) ([]*QueryHistoryEntry, apperrors.Error) {
	if tenantID.IsNil() {
		return nil, dberror.ErrMissingTenantID
	}

	query := `
		SELECT id, tenant_id, sql, status, duration_ms, row_count, error_message, executed_at
		FROM query_history
		WHERE tenant_id = $1
		ORDER BY executed_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to list query history")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	entries := []*QueryHistoryEntry{}
	for rows.Next() {
		entry := &QueryHistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.SQL, &entry.Status,
			&entry.DurationMs, &entry.RowCount, &entry.ErrorMessage, &entry.ExecutedAt); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return entries, nil
}

// ClearQueryHistory drops all history entries for the tenant.
func (s *Store) ClearQueryHistory(ctx context.Context, tenantID types.TenantId) apperrors.Error {
	if tenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM query_history WHERE tenant_id = $1`, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to clear query history")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
