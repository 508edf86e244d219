// Package portal classifies external sites into known access-portal families
// and detects whether authenticated registration is required.
package portal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
	"github.com/sells-group/procure-cli/internal/store"
)

// Classifier resolves SiteProfiles. Cached profiles are returned as-is;
// classification never re-runs unless Reverify is called explicitly.
type Classifier struct {
	store store.Store
	nav   navigator.Navigator
}

// NewClassifier creates a Classifier.
func NewClassifier(st store.Store, nav navigator.Navigator) *Classifier {
	return &Classifier{store: st, nav: nav}
}

// Classify returns the SiteProfile for the given site. A cached profile is
// returned with FromCache set and no page load is made.
func (c *Classifier) Classify(ctx context.Context, siteIdentity, siteURL string) (*model.SiteProfile, error) {
	cached, err := c.store.GetSiteProfile(ctx, siteIdentity)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		cached.FromCache = true
		return cached, nil
	}
	return c.classify(ctx, siteIdentity, siteURL)
}

// Reverify discards any cached profile and re-runs detection.
func (c *Classifier) Reverify(ctx context.Context, siteIdentity, siteURL string) (*model.SiteProfile, error) {
	return c.classify(ctx, siteIdentity, siteURL)
}

func (c *Classifier) classify(ctx context.Context, siteIdentity, siteURL string) (*model.SiteProfile, error) {
	page, err := c.nav.Open(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "portal: open page")
	}
	defer page.Close() //nolint:errcheck

	profile := &model.SiteProfile{
		SiteIdentity:   siteIdentity,
		Family:         model.FamilyNone,
		LastVerifiedAt: time.Now().UTC(),
	}

	if err := page.Navigate(ctx, siteURL); err != nil {
		return nil, eris.Wrapf(err, "portal: navigate %s", siteURL)
	}
	content, err := page.Content(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "portal: page content")
	}

	elements, err := page.Find(ctx, "a")
	if err != nil {
		elements = nil
	}
	anchors := make([]anchor, 0, len(elements))
	for _, el := range elements {
		anchors = append(anchors, anchor{Text: el.Text, Href: el.Attr("href")})
	}

	scores := familyScores(siteURL, content)
	family, confidence := bestFamily(scores)
	profile.Family = family
	profile.Confidence = confidence

	signals, loginURL, registrationURL := authSignals(content, anchors)
	if signals >= 2 {
		profile.AuthRequired = true
		profile.LoginURL = loginURL
		profile.RegistrationURL = registrationURL
		// Flag generation downstream needs a family key even when no known
		// portal was detected.
		if profile.Family == model.FamilyNone {
			profile.Family = model.FamilyUnknown
		}
	}

	zap.L().Info("site classified",
		zap.String("site", siteIdentity),
		zap.String("family", string(profile.Family)),
		zap.Float64("confidence", profile.Confidence),
		zap.Bool("auth_required", profile.AuthRequired),
		zap.Int("auth_signals", signals),
	)

	if err := c.store.UpsertSiteProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
