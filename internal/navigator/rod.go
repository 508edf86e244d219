package navigator

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/procure-cli/internal/config"
)

// RodNavigator runs a shared headless Chrome via go-rod. Page loads are rate
// limited across all open pages so a harvest run doesn't hammer one portal.
type RodNavigator struct {
	browser     *rod.Browser
	limiter     *rate.Limiter
	pageTimeout time.Duration
}

// NewRod launches a browser and connects to it.
func NewRod(cfg config.NavigatorConfig) (*RodNavigator, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox")

	if cfg.ChromePath != "" {
		l = l.Bin(cfg.ChromePath)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "navigator: launch browser")
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "navigator: connect browser")
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}
	timeout := time.Duration(cfg.PageTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RodNavigator{
		browser:     browser,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		pageTimeout: timeout,
	}, nil
}

func (n *RodNavigator) Open(ctx context.Context) (Page, error) {
	page, err := n.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, eris.Wrap(err, "navigator: open page")
	}
	return &rodPage{page: page, limiter: n.limiter, timeout: n.pageTimeout}, nil
}

func (n *RodNavigator) Close() error {
	return n.browser.Close()
}

type rodPage struct {
	page    *rod.Page
	limiter *rate.Limiter
	timeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "navigator: rate limit")
	}
	page := p.page.Context(ctx).Timeout(p.timeout)
	if err := page.Navigate(url); err != nil {
		return eris.Wrapf(err, "navigator: navigate %s", url)
	}
	if err := page.WaitLoad(); err != nil {
		return eris.Wrapf(err, "navigator: wait load %s", url)
	}
	return nil
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).Timeout(p.timeout).HTML()
	if err != nil {
		return "", eris.Wrap(err, "navigator: page html")
	}
	return html, nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", eris.Wrap(err, "navigator: page info")
	}
	return info.URL, nil
}

func (p *rodPage) Find(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Timeout(p.timeout).Elements(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "navigator: find %q", selector)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		attrs := map[string]string{}
		for _, name := range []string{"href", "src", "id", "class", "type", "name", "action"} {
			if v, err := el.Attribute(name); err == nil && v != nil {
				attrs[name] = *v
			}
		}
		out = append(out, Element{Text: text, Attrs: attrs})
	}
	return out, nil
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.page.Context(ctx).Timeout(p.timeout).Element(selector)
	if err != nil {
		return eris.Wrapf(err, "navigator: fill find %q", selector)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return eris.Wrapf(err, "navigator: fill input %q", selector)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Timeout(p.timeout).Element(selector)
	if err != nil {
		return eris.Wrapf(err, "navigator: click find %q", selector)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrapf(err, "navigator: click %q", selector)
	}
	return nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	el, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return eris.Wrapf(err, "navigator: wait find %q", selector)
	}
	if err := el.WaitVisible(); err != nil {
		return eris.Wrapf(err, "navigator: wait visible %q", selector)
	}
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
