package discovery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/pkg/anthropic"
)

const claudeSystemPrompt = `You analyze government procurement web pages and propose CSS selectors for automated navigation.
Respond with a single JSON object and nothing else:
{
  "login_path": "",
  "login": {"username_selector": "", "password_selector": "", "submit_selector": "", "success_selector": ""},
  "listing": {"search_path": "", "row_selector": "", "title_selector": "", "detail_link_selector": "", "next_page_selector": ""},
  "documents": {"section_selector": "", "link_selector": "", "extensions": [".pdf"]},
  "confidence": 0.0
}
Leave fields empty when the page gives no evidence for them. Confidence is your overall belief the selectors will work, from 0 to 1.`

// maxSampleHTMLBytes bounds how much page HTML goes into the prompt.
const maxSampleHTMLBytes = 12000

// ClaudeAnalyzer proposes templates via the Anthropic API.
type ClaudeAnalyzer struct {
	client anthropic.Client
	model  string
	maxTok int64
}

// NewClaudeAnalyzer creates a ClaudeAnalyzer.
func NewClaudeAnalyzer(client anthropic.Client, cfg config.AnthropicConfig) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		client: client,
		model:  cfg.HaikuModel,
		maxTok: cfg.MaxTokens,
	}
}

func (a *ClaudeAnalyzer) Name() string { return "claude" }

// claudeTemplate mirrors the JSON shape the prompt asks for.
type claudeTemplate struct {
	LoginPath string `json:"login_path"`
	Login     struct {
		UsernameSelector string `json:"username_selector"`
		PasswordSelector string `json:"password_selector"`
		SubmitSelector   string `json:"submit_selector"`
		SuccessSelector  string `json:"success_selector"`
	} `json:"login"`
	Listing struct {
		SearchPath         string `json:"search_path"`
		RowSelector        string `json:"row_selector"`
		TitleSelector      string `json:"title_selector"`
		DetailLinkSelector string `json:"detail_link_selector"`
		NextPageSelector   string `json:"next_page_selector"`
	} `json:"listing"`
	Documents struct {
		SectionSelector string   `json:"section_selector"`
		LinkSelector    string   `json:"link_selector"`
		Extensions      []string `json:"extensions"`
	} `json:"documents"`
	Confidence float64 `json:"confidence"`
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, siteURL string, samples []SamplePage) (*Analysis, error) {
	var prompt strings.Builder
	prompt.WriteString("Site: " + siteURL + "\n\n")
	for i, s := range samples {
		html := s.HTML
		if len(html) > maxSampleHTMLBytes {
			html = html[:maxSampleHTMLBytes]
		}
		prompt.WriteString("--- Page ")
		prompt.WriteString(s.URL)
		prompt.WriteString(" ---\n")
		prompt.WriteString(html)
		prompt.WriteString("\n")
		if i >= 2 {
			break
		}
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTok,
		System:    claudeSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: claude analyze")
	}

	cost := resp.Usage.EstimateCost(a.model)
	resp.Usage.LogCost(a.model, "discovery")

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	parsed, err := parseClaudeTemplate(text)
	if err != nil {
		// The call was billed even though the answer is unusable.
		return &Analysis{Cost: cost}, err
	}

	return &Analysis{
		Template:   parsed.toModel(),
		Confidence: parsed.Confidence,
		Cost:       cost,
	}, nil
}

func parseClaudeTemplate(text string) (*claudeTemplate, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("discovery: no JSON object in model response")
	}

	var parsed claudeTemplate
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "discovery: parse model response")
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return &parsed, nil
}

func (t *claudeTemplate) toModel() model.Template {
	return model.Template{
		LoginPath: t.LoginPath,
		Login: model.LoginSteps{
			UsernameSelector: t.Login.UsernameSelector,
			PasswordSelector: t.Login.PasswordSelector,
			SubmitSelector:   t.Login.SubmitSelector,
			SuccessSelector:  t.Login.SuccessSelector,
		},
		Listing: model.ListingSteps{
			SearchPath:         t.Listing.SearchPath,
			RowSelector:        t.Listing.RowSelector,
			TitleSelector:      t.Listing.TitleSelector,
			DetailLinkSelector: t.Listing.DetailLinkSelector,
			NextPageSelector:   t.Listing.NextPageSelector,
		},
		Documents: model.DocumentSteps{
			SectionSelector: t.Documents.SectionSelector,
			LinkSelector:    t.Documents.LinkSelector,
			Extensions:      t.Documents.Extensions,
		},
	}
}
