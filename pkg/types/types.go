package types

// TenantId identifies an isolated customer unit owning one or more
// dedicated databases.
type TenantId string

func (t TenantId) String() string {
	return string(t)
}

func (t TenantId) IsNil() bool {
	return t == ""
}

// AppId identifies a generated application. Each application owns at
// most one provisioned database.
type AppId string

func (a AppId) String() string {
	return string(a)
}

func (a AppId) IsNil() bool {
	return a == ""
}

// DatabaseStatus is the lifecycle state of a tenant database.
type DatabaseStatus string

const (
	DatabaseStatusCreating       DatabaseStatus = "creating"
	DatabaseStatusActive         DatabaseStatus = "active"
	DatabaseStatusMaintenance    DatabaseStatus = "maintenance"
	DatabaseStatusError          DatabaseStatus = "error"
	DatabaseStatusDeprovisioning DatabaseStatus = "deprovisioning"
)

// QueryStatus is the recorded outcome of a query execution.
type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusError   QueryStatus = "error"
)
