package vault

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestVault(t *testing.T, st store.Store) *Vault {
	t.Helper()
	v, err := New(context.Background(), st, config.VaultConfig{Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	return v
}

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()

	salt, err := newSalt()
	require.NoError(t, err)
	require.Len(t, salt, saltLength)

	key := deriveKey("hunter2", salt)
	require.Len(t, key, keyLength)

	sealed, err := seal(key, []byte("p@ssw0rd"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "p@ssw0rd")

	plaintext, err := open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "p@ssw0rd", string(plaintext))
}

func TestOpen_RejectsWrongKey(t *testing.T) {
	t.Parallel()

	salt, err := newSalt()
	require.NoError(t, err)

	sealed, err := seal(deriveKey("right", salt), []byte("secret"))
	require.NoError(t, err)

	_, err = open(deriveKey("wrong", salt), sealed)
	require.Error(t, err)
}

func TestOpen_RejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	salt, err := newSalt()
	require.NoError(t, err)
	key := deriveKey("hunter2", salt)

	sealed, err := seal(key, []byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = open(key, sealed)
	require.Error(t, err)

	_, err = open(key, []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestNew_RequiresPassphrase(t *testing.T) {
	st := newTestStore(t)

	_, err := New(context.Background(), st, config.VaultConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passphrase is required")
}

func TestNew_PersistsSaltAcrossInstances(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	v1 := newTestVault(t, st)
	_, err := v1.Put(ctx, "demandstar.com", model.FamilyDemandStar, "ops@sellsgroup.com", "s3cret", model.BusinessRegistration{})
	require.NoError(t, err)

	// A second vault over the same store derives the same key from the
	// persisted salt and can decrypt.
	v2 := newTestVault(t, st)
	cred, secret, err := v2.Get(ctx, "demandstar.com", model.FamilyDemandStar)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "s3cret", secret)
}

func TestVault_PutGetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	v := newTestVault(t, st)
	ctx := context.Background()

	reg := model.BusinessRegistration{LegalName: "Sells Group LLC", ContactEmail: "bids@sellsgroup.com"}
	cred, err := v.Put(ctx, "vendors.planetbids.com", model.FamilyPlanetBids, "bids@sellsgroup.com", "p@ssw0rd", reg)
	require.NoError(t, err)
	assert.Equal(t, model.CredentialUnverified, cred.Status)
	assert.NotEqual(t, []byte("p@ssw0rd"), cred.Sealed)

	got, secret, err := v.Get(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p@ssw0rd", secret)
	assert.Equal(t, "Sells Group LLC", got.Registration.LegalName)
}

func TestVault_PutResetsVerification(t *testing.T) {
	st := newTestStore(t)
	v := newTestVault(t, st)
	ctx := context.Background()

	cred, err := v.Put(ctx, "demandstar.com", model.FamilyDemandStar, "ops", "old-secret", model.BusinessRegistration{})
	require.NoError(t, err)
	require.NoError(t, v.MarkVerified(ctx, cred))

	_, err = v.Put(ctx, "demandstar.com", model.FamilyDemandStar, "ops", "new-secret", model.BusinessRegistration{})
	require.NoError(t, err)

	got, secret, err := v.Get(ctx, "demandstar.com", model.FamilyDemandStar)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new-secret", secret)
	assert.Equal(t, model.CredentialUnverified, got.Status)
}

func TestVault_GetMissing(t *testing.T) {
	st := newTestStore(t)
	v := newTestVault(t, st)

	cred, secret, err := v.Get(context.Background(), "nowhere.example.gov", model.FamilyBidNet)
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.Empty(t, secret)
}

func TestVault_DeleteIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	v := newTestVault(t, st)
	ctx := context.Background()

	_, err := v.Put(ctx, "demandstar.com", model.FamilyDemandStar, "ops", "secret", model.BusinessRegistration{})
	require.NoError(t, err)

	n, err := v.Delete(ctx, "demandstar.com", model.FamilyDemandStar)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = v.Delete(ctx, "demandstar.com", model.FamilyDemandStar)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestVault_SummaryNeverDecrypts(t *testing.T) {
	st := newTestStore(t)
	v := newTestVault(t, st)
	ctx := context.Background()

	_, err := v.Put(ctx, "a.bonfirehub.com", model.FamilyBonfire, "a", "s1", model.BusinessRegistration{})
	require.NoError(t, err)
	_, err = v.Put(ctx, "b.bonfirehub.com", model.FamilyBonfire, "b", "s2", model.BusinessRegistration{})
	require.NoError(t, err)

	// A vault with a different passphrase cannot decrypt, but the summary
	// works regardless because it only touches metadata.
	other, err := New(ctx, st, config.VaultConfig{Passphrase: "different passphrase"})
	require.NoError(t, err)

	summary, err := other.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, model.FamilyBonfire, summary[0].Family)
	assert.Equal(t, 2, summary[0].Count)

	_, _, err = other.Get(ctx, "a.bonfirehub.com", model.FamilyBonfire)
	require.Error(t, err)
}
