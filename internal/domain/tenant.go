package domain

import "time"

// TenantRecord locates a client's helpdesk database. Password holds the
// plaintext only after the directory opened the sealed column.
type TenantRecord struct {
	ClientID  string
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
	SSLMode   string
	CreatedAt time.Time
}

// MigrationState is one row of a tenant's ledger status.
type MigrationState struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt *time.Time
}
