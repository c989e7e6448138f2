// Package provision owns the tenant database lifecycle: creating the
// database and its role through the administrative connection, recording the
// claim in the metadata store, applying the starter schema, and tearing
// everything down again. Two concurrent provision calls for the same app
// must create exactly one database; the per-app lock serializes callers in
// this process and the unique claim row settles races across processes.
package provision

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gateway"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/sqlquote"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

type Service struct {
	store  *metastore.Store
	router *router.Router
	gw     *gateway.Gateway

	mu    sync.Mutex
	locks map[types.AppId]*sync.Mutex
}

// Options controls the optional initialization steps of a provision call.
type Options struct {
	InitializeSchema bool      `json:"initialize_schema"`
	AppFiles         []AppFile `json:"app_files,omitempty"`
}

// Result reports the outcome of a provision call. AlreadyExists marks the
// idempotent short-circuit: the record is returned unchanged and no new
// database was created.
type Result struct {
	AppID            types.AppId          `json:"app_id"`
	TenantID         types.TenantId       `json:"tenant_id"`
	DatabaseName     string               `json:"database"`
	ConnectionString string               `json:"connection_string"`
	Status           types.DatabaseStatus `json:"status"`
	AlreadyExists    bool                 `json:"already_exists"`
	SchemaGenerated  bool                 `json:"schema_generated"`
	TablesCreated    int                  `json:"tables_created"`
	Message          string               `json:"message"`
}

// Info is the shape returned by GetInfo.
type Info struct {
	HasDatabase      bool                 `json:"has_database"`
	DatabaseName     string               `json:"database,omitempty"`
	ConnectionString string               `json:"connection_string,omitempty"`
	Status           types.DatabaseStatus `json:"status,omitempty"`
}

func New(store *metastore.Store, r *router.Router, gw *gateway.Gateway) *Service {
	return &Service{
		store:  store,
		router: r,
		gw:     gw,
		locks:  make(map[types.AppId]*sync.Mutex),
	}
}

func (s *Service) appLock(appID types.AppId) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[appID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[appID] = lock
	}
	return lock
}

// releaseAppLock drops the lock entry so the map does not grow with every
// deprovisioned app.
func (s *Service) releaseAppLock(appID types.AppId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, appID)
}

// Provision creates the dedicated database for appID under tenantID, or
// returns the existing record unchanged when the app is already provisioned.
func (s *Service) Provision(ctx context.Context, tenantID types.TenantId, appID types.AppId, opts Options) (*Result, apperrors.Error) {
	if appID.IsNil() {
		return nil, gwerror.ErrValidation.Msg("missing app ID")
	}
	if tenantID.IsNil() {
		return nil, gwerror.ErrValidation.Msg("missing tenant ID")
	}

	lock := s.appLock(appID)
	lock.Lock()
	defer lock.Unlock()

	if result, err := s.existingResult(ctx, appID); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	td, err := s.claimTenantDatabase(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	created := td.Status == types.DatabaseStatusCreating
	if created {
		admin, err := openAdmin(ctx)
		if err != nil {
			s.store.DeleteTenantDatabase(ctx, tenantID)
			return nil, err
		}
		defer admin.Close()

		if err := createRole(ctx, admin, td.Username, td.Password); err != nil {
			s.rollbackCreate(ctx, admin, td)
			return nil, gwerror.ErrProvisioning.MsgErr("unable to create tenant role", err)
		}
		if err := createDatabase(ctx, admin, td.DatabaseName, td.Username); err != nil {
			s.rollbackCreate(ctx, admin, td)
			return nil, gwerror.ErrProvisioning.MsgErr("unable to create tenant database", err)
		}
		if err := s.store.UpdateTenantDatabaseStatus(ctx, tenantID, types.DatabaseStatusActive); err != nil {
			s.rollbackCreate(ctx, admin, td)
			return nil, err
		}
		td.Status = types.DatabaseStatusActive
		log.Ctx(ctx).Info().Str("tenant_id", tenantID.String()).
			Str("database", td.DatabaseName).Msg("tenant database created")
	}

	pr := &metastore.ProvisionRecord{
		AppID:            appID,
		TenantDatabaseID: td.ID,
		ConnectionString: connectionString(td),
	}
	if err := s.store.CreateProvisionRecord(ctx, pr); err != nil {
		if errors.Is(err, dberror.ErrAlreadyExists) {
			// lost a cross-process race; our claim row kept the database
			// unique, so just return the winner's record
			if result, rerr := s.existingResult(ctx, appID); rerr == nil && result != nil {
				return result, nil
			}
		}
		return nil, err
	}

	result := &Result{
		AppID:            appID,
		TenantID:         tenantID,
		DatabaseName:     td.DatabaseName,
		ConnectionString: maskDsn(pr.ConnectionString),
		Status:           td.Status,
		Message:          "database provisioned",
	}

	if opts.InitializeSchema && created {
		if err := s.applyStarterSchema(ctx, tenantID); err != nil {
			s.rollbackProvision(ctx, appID, td)
			return nil, err
		}
	}

	// best-effort: analysis failure leaves schema_generated=false but never
	// fails provisioning
	if len(opts.AppFiles) > 0 {
		generated, tables := s.generateAppSchema(ctx, tenantID, opts.AppFiles)
		result.SchemaGenerated = generated
		result.TablesCreated = tables
		if uerr := s.store.UpdateProvisionRecordSchema(ctx, appID, generated, tables); uerr != nil {
			log.Ctx(ctx).Warn().Err(uerr).Str("app_id", appID.String()).
				Msg("unable to record schema generation outcome")
		}
	}
	return result, nil
}

// existingResult returns the idempotent short-circuit result when a
// provision record already exists for appID.
func (s *Service) existingResult(ctx context.Context, appID types.AppId) (*Result, apperrors.Error) {
	pr, err := s.store.GetProvisionRecord(ctx, appID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	td, err := s.store.GetTenantDatabaseByID(ctx, pr.TenantDatabaseID)
	if err != nil {
		return nil, err
	}
	return &Result{
		AppID:            appID,
		TenantID:         td.TenantID,
		DatabaseName:     td.DatabaseName,
		ConnectionString: maskDsn(pr.ConnectionString),
		Status:           td.Status,
		AlreadyExists:    true,
		SchemaGenerated:  pr.SchemaGenerated,
		TablesCreated:    pr.TablesCreated,
		Message:          "database already exists",
	}, nil
}

// claimTenantDatabase inserts the creating-status record for tenantID, or
// returns the tenant's existing active database when another app already
// provisioned it.
func (s *Service) claimTenantDatabase(ctx context.Context, tenantID types.TenantId) (*metastore.TenantDatabase, apperrors.Error) {
	suffix := gwcommon.NewDatabaseSuffix()
	password, err := gonanoid.New(24)
	if err != nil {
		return nil, gwerror.ErrProvisioning.MsgErr("unable to generate credentials", err)
	}

	cfg := config.Config()
	td := &metastore.TenantDatabase{
		TenantID:     tenantID,
		Host:         cfg.TenantDbHost,
		Port:         cfg.TenantDbPort,
		DatabaseName: "tenant_" + suffix,
		Username:     "role_" + suffix,
		Password:     password,
		Status:       types.DatabaseStatusCreating,
	}
	cerr := s.store.CreateTenantDatabase(ctx, td)
	if cerr == nil {
		return td, nil
	}
	if !errors.Is(cerr, dberror.ErrAlreadyExists) {
		return nil, cerr
	}

	existing, gerr := s.store.GetTenantDatabase(ctx, tenantID)
	if gerr != nil {
		return nil, gerr
	}
	if existing.Status == types.DatabaseStatusError {
		// leftover claim from a failed run; clear it and claim again
		if derr := s.store.DeleteTenantDatabase(ctx, tenantID); derr != nil {
			return nil, derr
		}
		if cerr := s.store.CreateTenantDatabase(ctx, td); cerr != nil {
			return nil, cerr
		}
		return td, nil
	}
	if existing.Status != types.DatabaseStatusActive {
		return nil, gwerror.ErrConflict.Msg(
			"tenant database exists but is not active (status: " + string(existing.Status) + ")")
	}
	return existing, nil
}

// rollbackCreate undoes a half-finished database creation and releases the
// claim row so a later provision call can start clean. Only when the claim
// cannot be removed is the record marked as failed, and claimTenantDatabase
// clears such leftovers on the next attempt.
func (s *Service) rollbackCreate(ctx context.Context, admin *sql.DB, td *metastore.TenantDatabase) {
	if err := dropDatabase(ctx, admin, td.DatabaseName); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("database", td.DatabaseName).
			Msg("rollback: unable to drop tenant database")
	}
	if err := dropRole(ctx, admin, td.Username); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("role", td.Username).
			Msg("rollback: unable to drop tenant role")
	}
	if err := s.store.DeleteTenantDatabase(ctx, td.TenantID); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", td.TenantID.String()).
			Msg("rollback: unable to release tenant claim")
		if serr := s.store.UpdateTenantDatabaseStatus(ctx, td.TenantID, types.DatabaseStatusError); serr != nil {
			log.Ctx(ctx).Error().Err(serr).Str("tenant_id", td.TenantID.String()).
				Msg("rollback: unable to mark tenant database as failed")
		}
	}
}

// rollbackProvision tears down a provisioned database after a failed
// required initialization step.
func (s *Service) rollbackProvision(ctx context.Context, appID types.AppId, td *metastore.TenantDatabase) {
	s.router.Evict(td.TenantID)
	admin, err := openAdmin(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("rollback: unable to open admin connection")
		return
	}
	defer admin.Close()
	s.store.DeleteProvisionRecord(ctx, appID)
	s.rollbackCreate(ctx, admin, td)
}

func (s *Service) applyStarterSchema(ctx context.Context, tenantID types.TenantId) apperrors.Error {
	starter, err := loadStarterSchema()
	if err != nil {
		return err
	}
	statements, err := starter.Compile()
	if err != nil {
		return err
	}
	if _, err := s.gw.Execute(ctx, tenantID, statements, true); err != nil {
		return gwerror.ErrProvisioning.MsgErr("starter schema initialization failed", err)
	}
	return nil
}

// generateAppSchema derives tables from the app's manifests and creates
// them. Returns whether anything was generated and how many tables exist
// after the step.
func (s *Service) generateAppSchema(ctx context.Context, tenantID types.TenantId, files []AppFile) (bool, int) {
	tables := analyzeAppFiles(files)
	if len(tables) == 0 {
		return false, 0
	}

	created := 0
	for i := range tables {
		statements, err := ddl.CompileCreateTable(&tables[i])
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("table", tables[i].Name).
				Msg("schema generation: skipping invalid table")
			continue
		}
		statements = append([]string{
			"CREATE SCHEMA IF NOT EXISTS " + sqlquote.Ident(tables[i].Schema) + ";",
		}, statements...)
		if _, err := s.gw.Execute(ctx, tenantID, statements, true); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("table", tables[i].Name).
				Msg("schema generation: unable to create table")
			continue
		}
		created++
	}
	return created > 0, created
}

// GetInfo reports whether appID has a database and its connection string.
// The password is masked unless the caller asks for the credential with
// reveal.
func (s *Service) GetInfo(ctx context.Context, appID types.AppId, reveal bool) (*Info, apperrors.Error) {
	if appID.IsNil() {
		return nil, gwerror.ErrValidation.Msg("missing app ID")
	}

	pr, err := s.store.GetProvisionRecord(ctx, appID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return &Info{HasDatabase: false}, nil
		}
		return nil, err
	}
	td, err := s.store.GetTenantDatabaseByID(ctx, pr.TenantDatabaseID)
	if err != nil {
		return nil, err
	}
	cs := pr.ConnectionString
	if !reveal {
		cs = maskDsn(cs)
	}
	return &Info{
		HasDatabase:      true,
		DatabaseName:     td.DatabaseName,
		ConnectionString: cs,
		Status:           td.Status,
	}, nil
}

// Deprovision drops the tenant database for appID and removes its records.
// Calling it for an app that was never provisioned, or already
// deprovisioned, is a no-op.
func (s *Service) Deprovision(ctx context.Context, appID types.AppId) apperrors.Error {
	if appID.IsNil() {
		return gwerror.ErrValidation.Msg("missing app ID")
	}

	lock := s.appLock(appID)
	lock.Lock()
	defer lock.Unlock()

	pr, err := s.store.GetProvisionRecord(ctx, appID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil
		}
		return err
	}
	td, err := s.store.GetTenantDatabaseByID(ctx, pr.TenantDatabaseID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			// record is already gone, just clear the claim
			return s.store.DeleteProvisionRecord(ctx, appID)
		}
		return err
	}

	if err := s.store.UpdateTenantDatabaseStatus(ctx, td.TenantID, types.DatabaseStatusDeprovisioning); err != nil {
		return err
	}
	s.router.Evict(td.TenantID)

	admin, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer admin.Close()

	if derr := dropDatabase(ctx, admin, td.DatabaseName); derr != nil {
		s.store.UpdateTenantDatabaseStatus(ctx, td.TenantID, types.DatabaseStatusError)
		return gwerror.ErrProvisioning.MsgErr("unable to drop tenant database", derr)
	}
	if derr := dropRole(ctx, admin, td.Username); derr != nil {
		log.Ctx(ctx).Warn().Err(derr).Str("role", td.Username).
			Msg("unable to drop tenant role")
	}

	if err := s.store.DeleteProvisionRecord(ctx, appID); err != nil {
		return err
	}
	if err := s.store.DeleteTenantDatabase(ctx, td.TenantID); err != nil {
		return err
	}
	s.releaseAppLock(appID)
	log.Ctx(ctx).Info().Str("app_id", appID.String()).
		Str("database", td.DatabaseName).Msg("tenant database deprovisioned")
	return nil
}

// connectionString renders the unmasked URL stored with the provision
// record.
func connectionString(td *metastore.TenantDatabase) string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(td.Username, td.Password),
		Host:   td.Host + ":" + strconv.Itoa(td.Port),
		Path:   "/" + td.DatabaseName,
	}
	return u.String()
}

// maskDsn hides the password of a connection URL unless masking is disabled
// in configuration.
func maskDsn(dsn string) string {
	if !config.Config().MaskConnectionStrings {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
