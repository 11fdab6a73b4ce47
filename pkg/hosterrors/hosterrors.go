// Package hosterrors tracks hosts that keep failing at the network level.
// Once a host reaches the failure threshold the HTTP client stops sending
// it requests and returns a must-stop error instead, which plugins may
// recover from through their network error hook.
//
// Usage:
//
//	cache := hosterrors.NewCache(defaults.MaxHostErrors, duration.HostErrorExpiry)
//	if cache.Check(u) {
//	    return netclient.NewMustStopError(u, "host blocked", netclient.ErrHostBlocked)
//	}
package hosterrors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	failures  int
	blockedAt time.Time // zero until the threshold is reached
	permanent bool
}

// Cache counts network failures per host. Hosts are keyed by lowercase
// hostname without port, so http://a:80 and https://A:443 share an entry.
type Cache struct {
	threshold int
	expiry    time.Duration
	now       func() time.Time

	mu    sync.Mutex
	hosts map[string]*entry
}

// NewCache blocks a host after threshold failures. A blocked host is
// released expiry after it was blocked; permanent blocks never expire.
func NewCache(threshold int, expiry time.Duration) *Cache {
	if threshold <= 0 {
		threshold = 1
	}
	return &Cache{
		threshold: threshold,
		expiry:    expiry,
		now:       time.Now,
		hosts:     make(map[string]*entry),
	}
}

// MarkError records one failure and reports whether the host is now blocked.
func (c *Cache) MarkError(target string) bool {
	host := Host(target)
	if host == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.hosts[host]
	if e == nil {
		e = &entry{}
		c.hosts[host] = e
	}
	c.expire(e)

	e.failures++
	if e.failures >= c.threshold && e.blockedAt.IsZero() {
		e.blockedAt = c.now()
	}
	return !e.blockedAt.IsZero()
}

// MarkPermanent blocks a host until Clear, e.g. after NXDOMAIN.
func (c *Cache) MarkPermanent(target string) {
	host := Host(target)
	if host == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts[host] = &entry{failures: c.threshold, blockedAt: c.now(), permanent: true}
}

// Check reports whether requests to target should fail fast.
func (c *Cache) Check(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.hosts[Host(target)]
	if e == nil {
		return false
	}
	c.expire(e)
	return !e.blockedAt.IsZero()
}

// expire resets a temporary block that has outlived the expiry.
func (c *Cache) expire(e *entry) {
	if e.permanent || e.blockedAt.IsZero() {
		return
	}
	if c.now().Sub(e.blockedAt) > c.expiry {
		*e = entry{}
	}
}

// Errors returns the failure count recorded for target's host.
func (c *Cache) Errors(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.hosts[Host(target)]; e != nil {
		return e.failures
	}
	return 0
}

// Clear forgets target's host, typically after a successful request.
func (c *Cache) Clear(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hosts, Host(target))
}

// Blocked returns the currently blocked hosts, sorted.
func (c *Cache) Blocked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for host, e := range c.hosts {
		c.expire(e)
		if !e.blockedAt.IsZero() {
			out = append(out, host)
		}
	}
	sort.Strings(out)
	return out
}

// Host returns the lowercase hostname of a URL or host[:port] string.
func Host(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil {
			return strings.ToLower(u.Hostname())
		}
	}
	if h, _, err := net.SplitHostPort(target); err == nil {
		target = h
	}
	return strings.ToLower(target)
}

// IsNetworkError reports whether err says something about the host's
// reachability. Cancellation never does.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range networkIndicators {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsDNSError reports whether err is a lookup of a host that does not exist.
func IsDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

var networkIndicators = []string{
	"connection refused",
	"connection reset",
	"no route to host",
	"network is unreachable",
	"i/o timeout",
	"tls handshake timeout",
}
