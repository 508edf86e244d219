package vault

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
)

// TechnicalErrorReason is recorded when verification could not complete for
// operational reasons (timeouts, browser failures) rather than bad credentials.
const TechnicalErrorReason = "technical error"

// successURLMarkers indicate a post-login redirect to an authenticated area.
var successURLMarkers = []string{"dashboard", "account", "portal/home", "vendor/home"}

// successContentMarkers indicate an authenticated page.
var successContentMarkers = []string{"logout", "log out", "sign out", "my account", "welcome back"}

// failureContentMarkers indicate rejected credentials. The matched marker is
// captured as the failure reason.
var failureContentMarkers = []string{
	"invalid password",
	"invalid username",
	"incorrect password",
	"login failed",
	"invalid credentials",
	"authentication failed",
}

// Verifier drives a real login attempt through the page navigator to check a
// stored credential.
type Verifier struct {
	vault *Vault
	nav   navigator.Navigator
}

// NewVerifier creates a Verifier.
func NewVerifier(v *Vault, nav navigator.Navigator) *Verifier {
	return &Verifier{vault: v, nav: nav}
}

// Verify logs into the site with the stored credential and inspects the
// result. The credential's status is updated in place and persisted. Verify
// never returns an error for navigation failures: those are recorded as a
// failed verification with a technical-error reason.
func (vf *Verifier) Verify(ctx context.Context, cred *model.Credential, secret, loginURL string, steps model.LoginSteps) model.CredentialStatus {
	status, reason := vf.attemptLogin(ctx, secret, loginURL, steps, cred.Account)

	var err error
	switch status {
	case model.CredentialVerified:
		err = vf.vault.MarkVerified(ctx, cred)
	default:
		err = vf.vault.MarkFailed(ctx, cred, reason)
	}
	if err != nil {
		zap.L().Error("persist verification result",
			zap.String("site", cred.SiteIdentity),
			zap.Error(err),
		)
	}

	zap.L().Info("credential verified",
		zap.String("site", cred.SiteIdentity),
		zap.String("family", string(cred.Family)),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	)
	return status
}

func (vf *Verifier) attemptLogin(ctx context.Context, secret, loginURL string, steps model.LoginSteps, account string) (model.CredentialStatus, string) {
	page, err := vf.nav.Open(ctx)
	if err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}
	defer page.Close() //nolint:errcheck

	if err := page.Navigate(ctx, loginURL); err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}
	if err := page.Fill(ctx, steps.UsernameSelector, account); err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}
	if err := page.Fill(ctx, steps.PasswordSelector, secret); err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}
	if err := page.Click(ctx, steps.SubmitSelector); err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}

	currentURL, err := page.URL(ctx)
	if err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}
	content, err := page.Content(ctx)
	if err != nil {
		return model.CredentialFailed, TechnicalErrorReason
	}

	lowerURL := strings.ToLower(currentURL)
	lowerContent := strings.ToLower(content)

	// Explicit rejection text beats URL heuristics.
	for _, m := range failureContentMarkers {
		if strings.Contains(lowerContent, m) {
			return model.CredentialFailed, m
		}
	}

	for _, m := range successURLMarkers {
		if strings.Contains(lowerURL, m) {
			return model.CredentialVerified, ""
		}
	}
	if steps.SuccessSelector != "" {
		if els, err := page.Find(ctx, steps.SuccessSelector); err == nil && len(els) > 0 {
			return model.CredentialVerified, ""
		}
	}
	for _, m := range successContentMarkers {
		if strings.Contains(lowerContent, m) {
			return model.CredentialVerified, ""
		}
	}

	return model.CredentialFailed, "no authenticated markers after login"
}
