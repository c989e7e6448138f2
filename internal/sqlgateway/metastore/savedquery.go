package metastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// CreateSavedQuery stores a named query for the tenant.
func (s *Store) CreateSavedQuery(ctx context.Context, sq *SavedQuery) apperrors.Error {
	if sq.TenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}
	if sq.ID == "" {
		sq.ID = gwcommon.NewEntryId()
	}
	if sq.Tags == nil {
		sq.Tags = []string{}
	}

	query := `
		INSERT INTO saved_queries (id, tenant_id, name, sql, description, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		sq.ID, sq.TenantID, sq.Name, sq.SQL, sq.Description, pq.Array(sq.Tags)).
		Scan(&sq.CreatedAt, &sq.UpdatedAt)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", sq.TenantID.String()).
			Msg("unable to create saved query")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// GetSavedQuery loads one saved query, scoped to the tenant.
func (s *Store) GetSavedQuery(ctx context.Context, tenantID types.TenantId, id string) (*SavedQuery, apperrors.Error) {
	if tenantID.IsNil() {
		return nil, dberror.ErrMissingTenantID
	}

	query := `
		SELECT id, tenant_id, name, sql, description, tags, created_at, updated_at
		FROM saved_queries
		WHERE tenant_id = $1 AND id = $2`
	sq := &SavedQuery{}
	err := s.db.QueryRowContext(ctx, query, tenantID, id).
		Scan(&sq.ID, &sq.TenantID, &sq.Name, &sq.SQL, &sq.Description,
			pq.Array(&sq.Tags), &sq.CreatedAt, &sq.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("saved query not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to load saved query")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return sq, nil
}

// ListSavedQueries returns the tenant's saved queries, most recently updated
// first.
func (s *Store) ListSavedQueries(ctx context.Context, tenantID types.TenantId) ([]*SavedQuery, apperrors.Error) {
	if tenantID.IsNil() {
		return nil, dberror.ErrMissingTenantID
	}

	query := `
		SELECT id, tenant_id, name, sql, description, tags, created_at, updated_at
		FROM saved_queries
		WHERE tenant_id = $1
		ORDER BY updated_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to list saved queries")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	queries := []*SavedQuery{}
	for rows.Next() {
		sq := &SavedQuery{}
		if err := rows.Scan(&sq.ID, &sq.TenantID, &sq.Name, &sq.SQL, &sq.Description,
			pq.Array(&sq.Tags), &sq.CreatedAt, &sq.UpdatedAt); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		queries = append(queries, sq)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return queries, nil
}

// UpdateSavedQuery replaces the mutable fields of a saved query.
func (s *Store) UpdateSavedQuery(ctx context.Context, sq *SavedQuery) apperrors.Error {
	if sq.TenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}
	if sq.Tags == nil {
		sq.Tags = []string{}
	}

	query := `
		UPDATE saved_queries
		SET name = $3, sql = $4, description = $5, tags = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		sq.TenantID, sq.ID, sq.Name, sq.SQL, sq.Description, pq.Array(sq.Tags)).
		Scan(&sq.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("saved query not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", sq.TenantID.String()).
			Msg("unable to update saved query")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// DeleteSavedQuery removes one saved query. Missing rows are reported so the
// workbench can distinguish a stale id from a successful delete.
func (s *Store) DeleteSavedQuery(ctx context.Context, tenantID types.TenantId, id string) apperrors.Error {
	if tenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_queries WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to delete saved query")
		return dberror.ErrDatabase.Err(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return dberror.ErrNotFound.Msg("saved query not found")
	}
	return nil
}
