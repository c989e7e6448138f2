package metastore

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/nexusdb/sqlgateway/pkg/types"
)

// TenantDatabase is the administrative record of a dedicated tenant database.
// It is created by the provisioning lifecycle and mutated only by it; the
// connection router reads it to open tenant pools.
type TenantDatabase struct {
	ID           uuid.UUID
	TenantID     types.TenantId
	Host         string
	Port         int
	DatabaseName string
	Username     string
	Password     string
	Status       types.DatabaseStatus
	Info         pgtype.JSONB
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProvisionRecord links a generated application to its tenant database.
// The unique constraint on AppID is the claim row that serializes concurrent
// provisioning of the same application.
type ProvisionRecord struct {
	ID               uuid.UUID
	AppID            types.AppId
	TenantDatabaseID uuid.UUID
	ConnectionString string
	SchemaGenerated  bool
	TablesCreated    int
	CreatedAt        time.Time
}

// QueryHistoryEntry records one query execution for a tenant. The store keeps
// only the most recent entries per tenant (FIFO eviction).
type QueryHistoryEntry struct {
	ID           string
	TenantID     types.TenantId
	SQL          string
	Status       types.QueryStatus
	DurationMs   int64
	RowCount     *int64
	ErrorMessage *string
	ExecutedAt   time.Time
}

// SavedQuery is a user-owned named query, independent of history.
type SavedQuery struct {
	ID          string
	TenantID    types.TenantId
	Name        string
	SQL         string
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
