package mailfinder

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/waftester/scanhost/pkg/netclient"
	"golang.org/x/net/html"
)

// Searcher returns pages likely to mention addresses of a domain.
type Searcher interface {
	Search(ctx context.Context, client netclient.Client, seed string, limit int) ([]string, error)
}

// LinkSearcher uses the seed page itself as the search index: the seed and
// every http(s) link on it, in document order.
type LinkSearcher struct{}

func (LinkSearcher) Search(ctx context.Context, client netclient.Client, seed string, limit int) ([]string, error) {
	base, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("mailfinder: bad seed %q: %w", seed, err)
	}
	resp, err := client.Get(ctx, seed)
	if err != nil {
		return nil, err
	}

	pages := []string{base.String()}
	seen := map[string]bool{base.String(): true}
	for _, href := range links(resp.Body) {
		if len(pages) >= limit {
			break
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		u := base.ResolveReference(ref)
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		u.Fragment = ""
		if s := u.String(); !seen[s] {
			seen[s] = true
			pages = append(pages, s)
		}
	}
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

// links returns the href of every anchor in body.
func links(body []byte) []string {
	var out []string
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					out = append(out, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}
