package metastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// CreateTenantDatabase inserts the record for a newly provisioned tenant
// database. The tenant_id unique constraint rejects a second record for the
// same tenant.
func (s *Store) CreateTenantDatabase(ctx context.Context, td *TenantDatabase) apperrors.Error {
	if td.TenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}
	if td.Info.Status == 0 { // pgtype.Undefined
		td.Info.Set(map[string]any{})
	}

	query := `
		INSERT INTO tenant_databases
			(tenant_id, host, port, database_name, username, password, status, info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		td.TenantID, td.Host, td.Port, td.DatabaseName,
		td.Username, td.Password, td.Status, td.Info).
		Scan(&td.ID, &td.CreatedAt, &td.UpdatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return dberror.ErrAlreadyExists.Msg("tenant database record already exists")
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant_id", td.TenantID.String()).
		Msg("unable to create tenant database record")
	return dberror.ErrDatabase.Err(err)
}

// GetTenantDatabase loads the record for tenantID.
func (s *Store) GetTenantDatabase(ctx context.Context, tenantID types.TenantId) (*TenantDatabase, apperrors.Error) {
	if tenantID.IsNil() {
		return nil, dberror.ErrMissingTenantID
	}

	query := `
		SELECT id, tenant_id, host, port, database_name, username, password,
		       status, info, created_at, updated_at
		FROM tenant_databases
		WHERE tenant_id = $1`
	td := &TenantDatabase{}
	err := s.db.QueryRowContext(ctx, query, tenantID).
		Scan(&td.ID, &td.TenantID, &td.Host, &td.Port, &td.DatabaseName,
			&td.Username, &td.Password, &td.Status, &td.Info,
			&td.CreatedAt, &td.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("tenant database not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to load tenant database record")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return td, nil
}

// GetTenantDatabaseByID loads a record by its primary key, used when
// resolving a provision record back to its database.
func (s *Store) GetTenantDatabaseByID(ctx context.Context, id uuid.UUID) (*TenantDatabase, apperrors.Error) {
	query := `
		SELECT id, tenant_id, host, port, database_name, username, password,
		       status, info, created_at, updated_at
		FROM tenant_databases
		WHERE id = $1`
	td := &TenantDatabase{}
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&td.ID, &td.TenantID, &td.Host, &td.Port, &td.DatabaseName,
			&td.Username, &td.Password, &td.Status, &td.Info,
			&td.CreatedAt, &td.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("tenant database not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("id", id.String()).
			Msg("unable to load tenant database record")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return td, nil
}

// UpdateTenantDatabaseStatus transitions the lifecycle status of the tenant
// database record.
func (s *Store) UpdateTenantDatabaseStatus(ctx context.Context, tenantID types.TenantId, status types.DatabaseStatus) apperrors.Error {
	if tenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}

	query := `
		UPDATE tenant_databases
		SET status = $2, updated_at = now()
		WHERE tenant_id = $1`
	result, err := s.db.ExecContext(ctx, query, tenantID, status)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to update tenant database status")
		return dberror.ErrDatabase.Err(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return dberror.ErrNotFound.Msg("tenant database not found")
	}
	return nil
}

// DeleteTenantDatabase removes the record for tenantID. Deleting a record
// that does not exist is not an error; deprovisioning is idempotent.
func (s *Store) DeleteTenantDatabase(ctx context.Context, tenantID types.TenantId) apperrors.Error {
	if tenantID.IsNil() {
		return dberror.ErrMissingTenantID
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_databases WHERE tenant_id = $1`, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID.String()).
			Msg("unable to delete tenant database record")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
