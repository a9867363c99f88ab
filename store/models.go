package store

import "time"

// TaskStatus is the lifecycle state of a SyncTask.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Credential is a remote API key held by the system.
type Credential struct {
	ID         string
	Label      string
	TailHash   string
	SecretBlob string
	CreatedAt  time.Time
}

// SyncState is the one-to-one highwatermark record for a credential.
type SyncState struct {
	CredentialID  string
	Highwatermark uint64
	LastSyncAt    *time.Time
}

// ChangedDatesQuery is an append-only audit row for one discovery call.
type ChangedDatesQuery struct {
	ID               int64
	CredentialID     string
	HighwatermarkIn  uint64
	HighwatermarkOut uint64
	DatesFound       int
	CreatedAt        time.Time
}

// SyncTask is a (credential, date) unit of fetch work.
type SyncTask struct {
	ID           int64
	CredentialID string
	Date         string // YYYY-MM-DD
	Status       TaskStatus
	Error        *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// StatusCounts is a per-status tally of SyncTasks for a credential.
type StatusCounts struct {
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// SalesRecord is the denormalized per-line-item row.
type SalesRecord struct {
	ID                    int64
	CredentialID          string
	Date                  string
	LineItemType          string
	AppID                 *int64
	PackageID             *int64
	BundleID              *int64
	PartnerID             *int64
	GameItemID            *int64
	CountryCode           *string
	Platform              *string
	Currency              *string
	BasePriceCents        *int64
	SalePriceCents        *int64
	AvgSalePriceUSDCents  int64
	GrossSalesUSDCents    int64
	GrossReturnsUSDCents  int64
	NetSalesUSDCents      int64
	NetTaxUSDCents        int64
	GrossUnitsSold        int64
	GrossUnitsReturned    int64
	GrossUnitsActivated   int64
	NetUnitsSold          int64
	DiscountID            *int64
	DiscountPercentage    *int64
	CreatedAt             time.Time
}

// Lookup is a generic reference entity (app, package, bundle, partner,
// game item): integer id + display name.
type Lookup struct {
	ID   int64
	Name string
}

// Country is a lookup entity keyed by ISO code.
type Country struct {
	Code   string
	Name   string
	Region *string
}

// Discount is a lookup entity with an optional percentage.
type Discount struct {
	ID         int64
	Name       string
	Percentage *int
}
