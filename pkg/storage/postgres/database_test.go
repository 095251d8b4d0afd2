package postgres_test

import (
	"testing"

	"cryptodigest/config"
	"cryptodigest/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "yourpw",
		DBName:   "cryptodigest",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=yourpw dbname=cryptodigest sslmode=disable TimeZone=UTC",
		cfg.DSN())
	assert.Contains(t, cfg.ServerDSN(), "dbname=postgres ")
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	_, err := postgres.NewClient("host=127.0.0.1 port=1 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1")
	assert.Error(t, err)
}
