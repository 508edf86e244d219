// Package vault stores per-site login credentials encrypted at rest. The
// passphrase is mandatory: a missing passphrase is a startup error, never a
// silent fallback to plaintext.
package vault

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

// Vault encrypts and persists credentials keyed by (site identity, family).
type Vault struct {
	store store.Store
	key   []byte
}

// New derives the vault key from the configured passphrase. The KDF salt is
// created on first use and persisted in the store.
func New(ctx context.Context, st store.Store, cfg config.VaultConfig) (*Vault, error) {
	if cfg.Passphrase == "" {
		return nil, eris.New("vault: passphrase is required (set PROCURE_VAULT_PASSPHRASE)")
	}

	salt, err := st.GetVaultSalt(ctx)
	if err != nil {
		return nil, err
	}
	if salt == nil {
		salt, err = newSalt()
		if err != nil {
			return nil, err
		}
		if err := st.SetVaultSalt(ctx, salt); err != nil {
			return nil, err
		}
	}

	return &Vault{store: st, key: deriveKey(cfg.Passphrase, salt)}, nil
}

// Put encrypts the secret and stores the credential. An existing credential
// for the same (site, family) is replaced and reset to unverified.
func (v *Vault) Put(ctx context.Context, siteIdentity string, family model.PortalFamily, account, secret string, reg model.BusinessRegistration) (*model.Credential, error) {
	sealed, err := seal(v.key, []byte(secret))
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		SiteIdentity: siteIdentity,
		Family:       family,
		Account:      account,
		Sealed:       sealed,
		Registration: reg,
		Status:       model.CredentialUnverified,
	}
	if err := v.store.PutCredential(ctx, cred); err != nil {
		return nil, err
	}

	zap.L().Info("credential stored",
		zap.String("site", siteIdentity),
		zap.String("family", string(family)),
		zap.String("account", account),
	)
	return cred, nil
}

// Get retrieves and decrypts a credential. Returns (nil, "", nil) when no
// credential exists.
func (v *Vault) Get(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.Credential, string, error) {
	cred, err := v.store.GetCredential(ctx, siteIdentity, family)
	if err != nil {
		return nil, "", err
	}
	if cred == nil {
		return nil, "", nil
	}

	plaintext, err := open(v.key, cred.Sealed)
	if err != nil {
		return nil, "", eris.Wrapf(err, "vault: decrypt credential %s/%s", siteIdentity, family)
	}
	return cred, string(plaintext), nil
}

// Delete removes a credential. Deleting a missing credential is a no-op
// returning zero.
func (v *Vault) Delete(ctx context.Context, siteIdentity string, family model.PortalFamily) (int64, error) {
	return v.store.DeleteCredential(ctx, siteIdentity, family)
}

// Summary aggregates credential counts by family and status without touching
// any sealed secret.
func (v *Vault) Summary(ctx context.Context) ([]model.CredentialCount, error) {
	return v.store.CredentialSummary(ctx)
}

// MarkVerified records a successful verification.
func (v *Vault) MarkVerified(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	cred.Status = model.CredentialVerified
	cred.FailureReason = ""
	cred.LastVerifiedAt = &now
	return v.store.UpdateCredentialStatus(ctx, cred.ID, model.CredentialVerified, "", now)
}

// MarkFailed records a failed verification with its reason.
func (v *Vault) MarkFailed(ctx context.Context, cred *model.Credential, reason string) error {
	now := time.Now().UTC()
	cred.Status = model.CredentialFailed
	cred.FailureReason = reason
	cred.LastVerifiedAt = &now
	return v.store.UpdateCredentialStatus(ctx, cred.ID, model.CredentialFailed, reason, now)
}
