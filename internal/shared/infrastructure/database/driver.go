package database

import "strings"

// Driver represents a storage backend type.
type Driver string

const (
	// DriverMemory keeps state in process memory.
	DriverMemory Driver = "memory"
	// DriverRedis represents a Redis server.
	DriverRedis Driver = "redis"
	// DriverPostgres represents PostgreSQL database.
	DriverPostgres Driver = "postgres"
	// DriverSQLite represents SQLite database.
	DriverSQLite Driver = "sqlite"
)

// String returns the string representation of the driver.
func (d Driver) String() string {
	return string(d)
}

// DetectDriver parses a connection string and returns the driver type.
// Empty and "memory" select the in-process store.
func DetectDriver(url string) Driver {
	switch {
	case url == "" || url == "memory":
		return DriverMemory
	case strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://"):
		return DriverRedis
	case strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// SQLitePath strips the sqlite:// scheme from a URL.
func SQLitePath(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}
