package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"console_go/internal/domain"
	"console_go/internal/security"
)

func TestPreferenceGetSetOverwrite(t *testing.T) {
	repo := NewPreferenceRepo(testDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, PrefLastCategory)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Set(ctx, PrefLastCategory, "sms"))
	v, err := repo.Get(ctx, PrefLastCategory)
	require.NoError(t, err)
	assert.Equal(t, "sms", v)

	require.NoError(t, repo.Set(ctx, PrefLastCategory, "all"))
	v, err = repo.Get(ctx, PrefLastCategory)
	require.NoError(t, err)
	assert.Equal(t, "all", v)
}

func TestOperatorCreateAndLookup(t *testing.T) {
	repo := NewOperatorRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "operator", "hashed-1"))
	// Re-creating the same account updates the password.
	require.NoError(t, repo.Create(ctx, "operator", "hashed-2"))

	hashed, err := repo.GetHashedPassword(ctx, "operator")
	require.NoError(t, err)
	assert.Equal(t, "hashed-2", hashed)

	_, err = repo.GetHashedPassword(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotRoundTripEncrypted(t *testing.T) {
	db := testDB(t)
	enc, err := security.NewEncryptor([]byte("local-test-key"))
	require.NoError(t, err)
	repo := NewSnapshotRepo(db, enc)
	ctx := context.Background()

	name := "Jane Doe"
	convs := []*domain.Conversation{{
		ID:              1,
		CustomerPhone:   "+15551230001",
		CustomerName:    &name,
		Platform:        domain.PlatformSMS,
		ControlMode:     domain.ControlAI,
		LastMessageTime: time.Now().UTC().Truncate(time.Second),
	}}
	require.NoError(t, repo.Save(ctx, "active/-", convs))

	// The stored payload must not contain the customer data in the clear.
	var payload string
	require.NoError(t, db.QueryRow(`SELECT payload FROM snapshots WHERE scope_key = ?`, "active/-").Scan(&payload))
	assert.NotContains(t, payload, "Jane")
	assert.NotContains(t, payload, "+15551230001")

	got, savedAt, err := repo.Load(ctx, "active/-")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "+15551230001", got[0].CustomerPhone)
	assert.False(t, savedAt.IsZero())
}

func TestSnapshotSaveOverwritesScopeEntry(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("local-test-key"))
	require.NoError(t, err)
	repo := NewSnapshotRepo(testDB(t), enc)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "active/-", []*domain.Conversation{{ID: 1, CustomerPhone: "+1"}}))
	require.NoError(t, repo.Save(ctx, "active/-", []*domain.Conversation{{ID: 2, CustomerPhone: "+2"}}))

	got, _, err := repo.Load(ctx, "active/-")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestSnapshotWrongKeyReadsAsAbsent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	enc1, err := security.NewEncryptor([]byte("key-one"))
	require.NoError(t, err)
	require.NoError(t, NewSnapshotRepo(db, enc1).Save(ctx, "active/-", []*domain.Conversation{{ID: 1}}))

	enc2, err := security.NewEncryptor([]byte("key-two"))
	require.NoError(t, err)
	_, _, err = NewSnapshotRepo(db, enc2).Load(ctx, "active/-")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotLoadMissingScope(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("local-test-key"))
	require.NoError(t, err)
	repo := NewSnapshotRepo(testDB(t), enc)

	_, _, err = repo.Load(context.Background(), "archived/-")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
