package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cryptodigest/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to the database in CRYPTODIGEST_TEST_POSTGRES_DSN,
// e.g. "host=localhost port=5432 user=postgres password=yourpw dbname=cryptodigest sslmode=disable".
func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	dsn := os.Getenv("CRYPTODIGEST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CRYPTODIGEST_TEST_POSTGRES_DSN not set")
	}

	client, err := postgres.NewClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.AutoMigrateSubscriberRecord())
	return client
}

// go test -v --run ^TestPostgresClientHealthy$
func TestPostgresClientHealthy(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	assert.True(t, client.IsHealthy(ctx))
}

// go test -v --run TestSubscriberStore
func TestSubscriberStore(t *testing.T) {
	client := testClient(t)
	store := postgres.NewSubscriberStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []string{"a@x.com", "b@y.com"}))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, got)

	require.NoError(t, store.Save(ctx, []string{"a@x.com", "b@y.com", "c@z.com"}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@y.com", "c@z.com"}, got)

	require.NoError(t, store.Save(ctx, nil))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
