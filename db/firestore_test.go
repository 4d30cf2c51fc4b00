package db

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreStoreContract(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "crisislens-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	clock := clockwork.NewFakeClockAt(epoch)
	runStoreContract(t, NewFirestoreStore(client, clock, zap.NewNop()), clock)
}
