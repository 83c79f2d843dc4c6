package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/infra/storage/storagetest"
)

// openTest connects to WALLETGUARD_TEST_DATABASE_URL and resets the schema.
func openTest(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("WALLETGUARD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WALLETGUARD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db.DB.DB, "reset"))
	require.NoError(t, Migrate(ctx, db.DB.DB, "up"))
	return db
}

func TestEventRepo(t *testing.T) {
	storagetest.RunEventRepository(t, openTest(t).Events())
}

func TestSnapshotRepo(t *testing.T) {
	storagetest.RunSnapshotRepository(t, openTest(t).Snapshots())
}

func TestNullLimit(t *testing.T) {
	require.Nil(t, nullLimit(0))
	require.Nil(t, nullLimit(-1))
	require.Equal(t, 5, nullLimit(5))
}
