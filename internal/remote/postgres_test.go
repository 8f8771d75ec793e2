package remote

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPostgresStore_Contract runs against a real database when
// CHATSYNC_TEST_DATABASE_URL is set.
func TestPostgresStore_Contract(t *testing.T) {
	url := os.Getenv("CHATSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHATSYNC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	store, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.pool.Exec(ctx, `DELETE FROM doc_snapshots WHERE doc_key LIKE 'contract-%'`)
	require.NoError(t, err)

	runStoreContract(t, store)
}
