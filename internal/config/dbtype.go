package config

import "strings"

const (
	DriverOracle   = "oracle"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// NormalizeDriver maps driver aliases onto the canonical names dbclient understands.
// An empty value means oracle, the catalog the tool was first written against.
func NormalizeDriver(driver string) string {
	v := strings.ToLower(strings.TrimSpace(driver))
	switch v {
	case "", "ora", "godror", "oracle":
		return DriverOracle
	case "postgresql", "pg", "pgx":
		return DriverPostgres
	case "mariadb":
		return DriverMySQL
	default:
		return v
	}
}

// IsSupportedDriver reports whether dbclient has a dialect for driver.
func IsSupportedDriver(driver string) bool {
	switch NormalizeDriver(driver) {
	case DriverOracle, DriverPostgres, DriverMySQL:
		return true
	default:
		return false
	}
}
