package metastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// CreateProvisionRecord claims the app for provisioning. The unique
// constraint on app_id makes the insert the atomic claim: the loser of a
// concurrent race gets ErrAlreadyExists and must read the winner's record.
func (s *Store) CreateProvisionRecord(ctx context.Context, pr *ProvisionRecord) apperrors.Error {
	if pr.AppID.IsNil() {
		return dberror.ErrMissingAppID
	}

	query := `
		INSERT INTO provision_records
			(app_id, tenant_database_id, connection_string, schema_generated, tables_created)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		pr.AppID, pr.TenantDatabaseID, pr.ConnectionString,
		pr.SchemaGenerated, pr.TablesCreated).
		Scan(&pr.ID, &pr.CreatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return dberror.ErrAlreadyExists.Msg("app is already provisioned")
	}
	log.Ctx(ctx).Error().Err(err).Str("app_id", pr.AppID.String()).
		Msg("unable to create provision record")
	return dberror.ErrDatabase.Err(err)
}

// GetProvisionRecord loads the provisioning record for appID.
func (s *Store) GetProvisionRecord(ctx context.Context, appID types.AppId) (*ProvisionRecord, apperrors.Error) {
	if appID.IsNil() {
		return nil, dberror.ErrMissingAppID
	}

	query := `
		SELECT id, app_id, tenant_database_id, connection_string,
		       schema_generated, tables_created, created_at
		FROM provision_records
		WHERE app_id = $1`
	pr := &ProvisionRecord{}
	err := s.db.QueryRowContext(ctx, query, appID).
		Scan(&pr.ID, &pr.AppID, &pr.TenantDatabaseID, &pr.ConnectionString,
			&pr.SchemaGenerated, &pr.TablesCreated, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("provision record not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("app_id", appID.String()).
			Msg("unable to load provision record")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return pr, nil
}

// UpdateProvisionRecordSchema records the outcome of schema generation for an
// already claimed app.
func (s *Store) UpdateProvisionRecordSchema(ctx context.Context, appID types.AppId, schemaGenerated bool, tablesCreated int) apperrors.Error {
	if appID.IsNil() {
		return dberror.ErrMissingAppID
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE provision_records
		SET schema_generated = $2, tables_created = $3
		WHERE app_id = $1`,
		appID, schemaGenerated, tablesCreated)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("app_id", appID.String()).
			Msg("unable to update provision record")
		return dberror.ErrDatabase.Err(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return dberror.ErrNotFound.Msg("provision record not found")
	}
	return nil
}

// DeleteProvisionRecord removes the claim for appID. Missing records are
// ignored so deprovisioning stays idempotent.
func (s *Store) DeleteProvisionRecord(ctx context.Context, appID types.AppId) apperrors.Error {
	if appID.IsNil() {
		return dberror.ErrMissingAppID
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM provision_records WHERE app_id = $1`, appID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("app_id", appID.String()).
			Msg("unable to delete provision record")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
