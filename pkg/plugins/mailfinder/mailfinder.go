// Package mailfinder is a discovery plugin that collects e-mail accounts
// of the target's domain from pages returned by a Searcher.
//
// Each page is fetched by its own task. Pages that fail with a must-stop
// network error are skipped. Every new account is stored under
// ("mails", "mails") and ("mailfinder", "mails") and reported without
// deduplication. The plugin runs once per scan.
package mailfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/report"
	"golang.org/x/net/publicsuffix"
)

const Name = "mailfinder"

// Store locations.
const (
	NamespaceMails = "mails"
	KeyMails       = "mails"
)

var mailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Plugin finds mail accounts for the target's registrable domain.
type Plugin struct {
	plugin.Base

	searcher Searcher
	limit    int
	ran      atomic.Bool

	mu       sync.Mutex
	accounts map[string]bool
}

// Option configures the plugin.
type Option func(*Plugin)

// WithSearcher replaces the default LinkSearcher.
func WithSearcher(s Searcher) Option {
	return func(p *Plugin) { p.searcher = s }
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base:     plugin.NewBase(Name),
		searcher: LinkSearcher{},
		limit:    defaults.MailResultLimit,
		accounts: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Type() string { return "discovery" }

func (p *Plugin) Description() string { return "Finds mail accounts of the target domain" }

func (p *Plugin) LongDescription() (string, error) {
	return `Searches for pages mentioning "@<root domain>", fetches every result
concurrently and extracts the mail accounts that belong to the target's
registrable domain.

Options:
  resultLimit  maximum number of pages to fetch (default 300)`, nil
}

func (p *Plugin) Dependencies() ([]string, error) { return nil, nil }

func (p *Plugin) Options() (plugin.OptionList, error) {
	return plugin.OptionList{{
		Name:        "resultLimit",
		Value:       fmt.Sprint(p.limit),
		Type:        plugin.TypeInteger,
		Description: `Fetch the first "resultLimit" search results`,
	}}, nil
}

func (p *Plugin) Configure(opts plugin.OptionList) error {
	schema, _ := p.Options()
	merged, err := plugin.Merge(schema, opts)
	if err != nil {
		return err
	}
	limit, err := merged.Int("resultLimit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("%w: resultLimit must be positive", plugin.ErrInvalidOption)
	}
	p.limit = limit
	return nil
}

// Run searches once; later calls return plugin.ErrRunOnce.
func (p *Plugin) Run(ctx context.Context, req *plugin.Request) (*plugin.Result, error) {
	if p.ran.Swap(true) {
		return nil, plugin.ErrRunOnce
	}

	target, err := url.Parse(req.Target)
	if err != nil || target.Hostname() == "" {
		return nil, fmt.Errorf("mailfinder: bad target %q", req.Target)
	}
	root := rootDomain(target.Hostname())

	pages, err := p.searcher.Search(ctx, p.Client(), req.Target, p.limit)
	if err != nil {
		return nil, fmt.Errorf("mailfinder: search @%s: %w", root, err)
	}

	for _, page := range pages {
		p.Dispatch(ctx, page, func(ctx context.Context) error {
			return p.findAccounts(ctx, page, root)
		})
	}
	if err := p.AwaitAll(); err != nil {
		return nil, err
	}

	found := p.Store().All(Name, KeyMails)
	if err := p.Report(found, report.None); err != nil {
		return nil, err
	}
	return &plugin.Result{Plugin: Name, Discovered: pages, Findings: len(found)}, nil
}

func (p *Plugin) findAccounts(ctx context.Context, page, root string) error {
	p.Logger().Debug("searching for mails", slog.String("url", page))

	resp, err := p.Client().Get(ctx, page)
	if err != nil {
		if _, ok := netclient.AsMustStop(err); ok {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		p.Logger().Debug("fetch failed", slog.String("url", page), slog.String("error", err.Error()))
		return nil
	}

	for _, mail := range mails(resp.Body, root) {
		if !p.claim(mail) {
			continue
		}
		f := finding.Finding{
			OriginURL:   page,
			Name:        mail,
			Description: fmt.Sprintf("The mail account: %q was found in: %q", mail, page),
			Attributes: map[string]string{
				"mail": mail,
				"user": strings.SplitN(mail, "@", 2)[0],
			},
		}
		if err := p.Append(NamespaceMails, KeyMails, f); err != nil {
			return err
		}
		if err := p.Append(Name, KeyMails, f); err != nil {
			return err
		}
	}
	return nil
}

// claim records mail and reports whether it was new.
func (p *Plugin) claim(mail string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accounts[mail] {
		return false
	}
	p.accounts[mail] = true
	return true
}

// Accounts returns the number of distinct accounts found.
func (p *Plugin) Accounts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// mails returns the distinct addresses in body whose domain is root or a
// subdomain of it, lowercased, in order of appearance.
func mails(body []byte, root string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mailPattern.FindAll(body, -1) {
		mail := strings.ToLower(string(m))
		domain := mail[strings.LastIndex(mail, "@")+1:]
		if domain != root && !strings.HasSuffix(domain, "."+root) {
			continue
		}
		if !seen[mail] {
			seen[mail] = true
			out = append(out, mail)
		}
	}
	return out
}

// rootDomain returns the registrable domain of host, e.g. example.co.uk
// for www.example.co.uk. IPs and single labels are returned unchanged.
func rootDomain(host string) string {
	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return host
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}
