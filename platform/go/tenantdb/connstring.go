package tenantdb

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ConnTemplate carries the static host/credential configuration shared by all
// tenant databases. It lives in configuration only; lifecycle records store
// the database name and nothing else, so a compromised metadata store never
// leaks credentials.
type ConnTemplate struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// URL builds a full postgres connection URL for the given database name.
// The result is computed on the fly and must never be persisted.
func (t ConnTemplate) URL(databaseName string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", t.Host, t.Port),
		Path:   "/" + databaseName,
	}
	if t.User != "" {
		u.User = url.UserPassword(t.User, t.Password)
	}
	if t.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", t.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// DeriveDatabaseName computes the deterministic physical database name for a
// tenant identifier: lower-cased, runs of non-alphanumerics collapsed to a
// single underscore, prefixed with "tenant_".
func DeriveDatabaseName(tenantID string) string {
	name := strings.ToLower(strings.TrimSpace(tenantID))
	name = invalidNameChars.ReplaceAllString(name, "_")
	return "tenant_" + name
}
