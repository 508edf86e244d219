package portal

import (
	"regexp"
	"strings"

	"github.com/sells-group/procure-cli/internal/model"
)

// urlRule matches a portal family by domain or path shape.
type urlRule struct {
	family     model.PortalFamily
	pattern    *regexp.Regexp
	confidence float64
}

var urlRules = []urlRule{
	{model.FamilyBidNet, regexp.MustCompile(`(?i)bidnetdirect\.com|bidnet\.com`), 0.6},
	{model.FamilyPlanetBids, regexp.MustCompile(`(?i)planetbids\.com|pbsystem`), 0.6},
	{model.FamilyDemandStar, regexp.MustCompile(`(?i)demandstar\.com`), 0.6},
	{model.FamilyBonfire, regexp.MustCompile(`(?i)gobonfire\.com|bonfirehub\.com`), 0.6},
	{model.FamilyPublicPurchase, regexp.MustCompile(`(?i)publicpurchase\.com`), 0.6},
	{model.FamilyOpenGov, regexp.MustCompile(`(?i)opengov\.com|procurenow`), 0.6},
	{model.FamilyIonWave, regexp.MustCompile(`(?i)ionwave\.net`), 0.6},
}

// contentRule matches a portal family by rendered-page marker text.
type contentRule struct {
	family     model.PortalFamily
	markers    []string
	confidence float64
}

var contentRules = []contentRule{
	{model.FamilyBidNet, []string{"bidnet direct", "powered by bidnet"}, 0.4},
	{model.FamilyPlanetBids, []string{"planetbids", "pb system"}, 0.4},
	{model.FamilyDemandStar, []string{"demandstar"}, 0.4},
	{model.FamilyBonfire, []string{"bonfire interactive", "powered by bonfire"}, 0.4},
	{model.FamilyPublicPurchase, []string{"public purchase", "publicpurchase"}, 0.4},
	{model.FamilyOpenGov, []string{"opengov", "procurenow"}, 0.4},
	{model.FamilyIonWave, []string{"ionwave", "ion wave"}, 0.4},
}

// authPhrases mark pages that require a registered account.
var authPhrases = []string{
	"registration required",
	"vendor registration required",
	"must be registered",
	"member login",
	"login required",
	"create an account to view",
	"sign in to view",
	"registered vendors only",
}

var loginAnchorWords = []string{"login", "log in", "sign in"}

var registrationAnchorWords = []string{"register", "registration", "sign up", "create account"}

// familyScores sums URL and content confidence per family, clamped to [0,1].
func familyScores(siteURL, content string) map[model.PortalFamily]float64 {
	scores := make(map[model.PortalFamily]float64)

	for _, r := range urlRules {
		if r.pattern.MatchString(siteURL) {
			scores[r.family] += r.confidence
		}
	}

	lower := strings.ToLower(content)
	for _, r := range contentRules {
		for _, m := range r.markers {
			if strings.Contains(lower, m) {
				scores[r.family] += r.confidence
				break
			}
		}
	}

	for f, s := range scores {
		if s > 1 {
			scores[f] = 1
		}
	}
	return scores
}

// bestFamily picks the family with the highest score. No signals at all means
// the site is not on a known portal; ties resolve to unknown.
func bestFamily(scores map[model.PortalFamily]float64) (model.PortalFamily, float64) {
	var best model.PortalFamily
	var bestScore float64
	tied := false
	for f, s := range scores {
		switch {
		case s > bestScore:
			best, bestScore, tied = f, s, false
		case s == bestScore && bestScore > 0:
			tied = true
		}
	}
	if bestScore == 0 {
		return model.FamilyNone, 0
	}
	if tied {
		return model.FamilyUnknown, bestScore
	}
	return best, bestScore
}

// anchor is a link extracted from the rendered page.
type anchor struct {
	Text string
	Href string
}

// authSignals counts independent authentication indicators: a marker phrase,
// a login anchor, a registration anchor. Two or more means authentication is
// required. Returns the detected login and registration URLs when found.
func authSignals(content string, anchors []anchor) (signals int, loginURL, registrationURL string) {
	lower := strings.ToLower(content)
	for _, p := range authPhrases {
		if strings.Contains(lower, p) {
			signals++
			break
		}
	}

	foundLogin, foundReg := false, false
	for _, a := range anchors {
		text := strings.ToLower(a.Text)
		href := strings.ToLower(a.Href)
		if !foundLogin && anchorMatches(text, href, loginAnchorWords) {
			foundLogin = true
			loginURL = a.Href
		}
		if !foundReg && anchorMatches(text, href, registrationAnchorWords) {
			foundReg = true
			registrationURL = a.Href
		}
	}
	if foundLogin {
		signals++
	}
	if foundReg {
		signals++
	}
	return signals, loginURL, registrationURL
}

func anchorMatches(text, href string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) || strings.Contains(href, strings.ReplaceAll(w, " ", "")) {
			return true
		}
	}
	return false
}
