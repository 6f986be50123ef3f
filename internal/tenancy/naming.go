package tenancy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hubportal/hub/internal/domain"
)

const (
	databasePrefix = "hub_tenant_"
	// maxIdentifier is the Postgres identifier limit in bytes (NAMEDATALEN-1).
	maxIdentifier = 63
	shortIDLen    = 8
)

// DatabaseName derives the tenant database name from the client id: a
// readable slug (every character outside [a-z0-9] becomes an underscore)
// followed by a short hash of the raw id, so ids that slug alike still get
// distinct databases. The result never exceeds the identifier limit.
func DatabaseName(clientID string) string {
	var slug strings.Builder
	for _, r := range strings.ToLower(clientID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			slug.WriteRune(r)
			continue
		}
		slug.WriteByte('_')
	}
	suffix := "_" + ShortID(clientID)
	room := maxIdentifier - len(databasePrefix) - len(suffix)
	base := slug.String()
	if len(base) > room {
		base = base[:room]
	}
	return databasePrefix + base + suffix
}

// ShortID returns the first hex characters of a name-based UUID of clientID.
func ShortID(clientID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(clientID))
	return strings.ReplaceAll(id.String(), "-", "")[:shortIDLen]
}

// DSN renders the connection string for a tenant record.
func DSN(rec domain.TenantRecord) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(rec.User, rec.Password),
		Host:   fmt.Sprintf("%s:%d", rec.Host, rec.Port),
		Path:   "/" + rec.Database,
	}
	if rec.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {rec.SSLMode}}.Encode()
	}
	return u.String()
}
