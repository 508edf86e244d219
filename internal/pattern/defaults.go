package pattern

import "github.com/sells-group/procure-cli/internal/model"

// builtinTemplates are hand-authored starting templates per portal family.
// They never expire and are available even with an empty store.
var builtinTemplates = map[model.PortalFamily]model.Template{
	model.FamilyBidNet: {
		LoginPath: "/login",
		Login: model.LoginSteps{
			UsernameSelector: "input[name='username']",
			PasswordSelector: "input[name='password']",
			SubmitSelector:   "button[type='submit']",
			SuccessSelector:  "a[href*='logout']",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/solicitations",
			RowSelector:        "table.solicitations tbody tr",
			TitleSelector:      "td.title a",
			DetailLinkSelector: "td.title a",
			NextPageSelector:   "a.next",
		},
		Documents: model.DocumentSteps{
			SectionSelector: "div.documents",
			LinkSelector:    "div.documents a[href]",
			Extensions:      []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip"},
		},
	},
	model.FamilyPlanetBids: {
		LoginPath: "/portal/login",
		Login: model.LoginSteps{
			UsernameSelector: "#username",
			PasswordSelector: "#password",
			SubmitSelector:   "button.login-btn",
			SuccessSelector:  ".user-menu",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/portal/bids",
			RowSelector:        ".bid-list .bid-row",
			TitleSelector:      ".bid-title",
			DetailLinkSelector: ".bid-title a",
			NextPageSelector:   ".pagination .next",
		},
		Documents: model.DocumentSteps{
			SectionSelector: ".bid-documents",
			LinkSelector:    ".bid-documents a[href]",
			Extensions:      []string{".pdf", ".doc", ".docx", ".zip"},
		},
	},
	model.FamilyDemandStar: {
		LoginPath: "/login",
		Login: model.LoginSteps{
			UsernameSelector: "input[name='email']",
			PasswordSelector: "input[name='password']",
			SubmitSelector:   "button[type='submit']",
			SuccessSelector:  "a[href*='logout']",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/bids",
			RowSelector:        ".bid-item",
			TitleSelector:      ".bid-item h3",
			DetailLinkSelector: ".bid-item a",
			NextPageSelector:   "a[rel='next']",
		},
		Documents: model.DocumentSteps{
			SectionSelector: ".attachments",
			LinkSelector:    ".attachments a[href]",
			Extensions:      []string{".pdf", ".doc", ".docx", ".zip"},
		},
	},
	model.FamilyBonfire: {
		LoginPath: "/login",
		Login: model.LoginSteps{
			UsernameSelector: "#email",
			PasswordSelector: "#password",
			SubmitSelector:   "button[type='submit']",
			SuccessSelector:  ".navbar-user",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/opportunities",
			RowSelector:        ".opportunity-row",
			TitleSelector:      ".opportunity-title",
			DetailLinkSelector: ".opportunity-title a",
			NextPageSelector:   ".pagination-next",
		},
		Documents: model.DocumentSteps{
			SectionSelector: ".public-files",
			LinkSelector:    ".public-files a[href]",
			Extensions:      []string{".pdf", ".doc", ".docx", ".xlsx", ".zip"},
		},
	},
	model.FamilyPublicPurchase: {
		LoginPath: "/gems/login",
		Login: model.LoginSteps{
			UsernameSelector: "input[name='username']",
			PasswordSelector: "input[name='password']",
			SubmitSelector:   "input[type='submit']",
			SuccessSelector:  "a[href*='logout']",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/gems/browse",
			RowSelector:        "table.bids tr",
			TitleSelector:      "td a",
			DetailLinkSelector: "td a",
			NextPageSelector:   "a.nextPage",
		},
		Documents: model.DocumentSteps{
			SectionSelector: "table.documents",
			LinkSelector:    "table.documents a[href]",
			Extensions:      []string{".pdf", ".doc", ".zip"},
		},
	},
	model.FamilyOpenGov: {
		LoginPath: "/signin",
		Login: model.LoginSteps{
			UsernameSelector: "input[type='email']",
			PasswordSelector: "input[type='password']",
			SubmitSelector:   "button[type='submit']",
			SuccessSelector:  "[data-testid='user-menu']",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/portal/solicitations",
			RowSelector:        ".solicitation-card",
			TitleSelector:      ".solicitation-card h2",
			DetailLinkSelector: ".solicitation-card a",
			NextPageSelector:   "button[aria-label='Next page']",
		},
		Documents: model.DocumentSteps{
			SectionSelector: ".attachments-section",
			LinkSelector:    ".attachments-section a[href]",
			Extensions:      []string{".pdf", ".docx", ".xlsx", ".zip"},
		},
	},
	model.FamilyIonWave: {
		LoginPath: "/Login.aspx",
		Login: model.LoginSteps{
			UsernameSelector: "input[id$='UserName']",
			PasswordSelector: "input[id$='Password']",
			SubmitSelector:   "input[id$='LoginButton']",
			SuccessSelector:  "a[id$='Logout']",
		},
		Listing: model.ListingSteps{
			SearchPath:         "/CurrentSourcingEvents.aspx",
			RowSelector:        "table.rgMasterTable tbody tr",
			TitleSelector:      "td:nth-child(2)",
			DetailLinkSelector: "td a",
			NextPageSelector:   "input[title='Next Page']",
		},
		Documents: model.DocumentSteps{
			SectionSelector: "div.attachments",
			LinkSelector:    "div.attachments a[href]",
			Extensions:      []string{".pdf", ".doc", ".xls", ".zip"},
		},
	},
	// Sites on no known portal get a generic template that looks for
	// document links anywhere on the page.
	model.FamilyNone: {
		Listing: model.ListingSteps{
			RowSelector:        "main, body",
			TitleSelector:      "h1, h2",
			DetailLinkSelector: "a[href]",
		},
		Documents: model.DocumentSteps{
			SectionSelector: "body",
			LinkSelector:    "a[href]",
			Extensions:      []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip"},
		},
	},
}

// DefaultTemplate returns the built-in template for a family. Unknown
// families share the generic template.
func DefaultTemplate(family model.PortalFamily) model.Template {
	if t, ok := builtinTemplates[family]; ok {
		return t
	}
	return builtinTemplates[model.FamilyNone]
}
