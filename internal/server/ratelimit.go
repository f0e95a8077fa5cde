package server

import (
	"fmt"
	"net"
	"net/netip"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Rate limit rejection messages.
const (
	hourlyLimitMessage = "Hourly rate limit exceeded"
	minuteLimitMessage = "Per-minute rate limit exceeded"
)

// RateLimiter is a per-client sliding-window limiter with a per-minute and a
// per-hour budget. A zero budget disables that window.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		hits:      make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Allow records a request from key.
// When the request is over budget it is not recorded, and Allow returns how
// long until a slot frees up along with the rejection reason.
func (l *RateLimiter) Allow(key string) (time.Duration, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	hits := prune(l.hits[key], now.Add(-time.Hour))

	if l.perHour > 0 && len(hits) >= l.perHour {
		l.hits[key] = hits
		return hits[len(hits)-l.perHour].Add(time.Hour).Sub(now), hourlyLimitMessage
	}

	if l.perMinute > 0 {
		recent := hits[sort.Search(len(hits), func(i int) bool {
			return hits[i].After(now.Add(-time.Minute))
		}):]
		if len(recent) >= l.perMinute {
			l.hits[key] = hits
			return recent[len(recent)-l.perMinute].Add(time.Minute).Sub(now), minuteLimitMessage
		}
	}

	l.hits[key] = append(hits, now)
	return 0, ""
}

// sweep drops idle clients at most once a minute.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-time.Hour)
	for key, hits := range l.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// prune drops hits at or before cutoff. hits is sorted oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(hits), func(i int) bool {
		return hits[i].After(cutoff)
	})
	return hits[i:]
}

// TrustedProxies is the set of networks whose forwarding headers are honoured.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		proxies = append(proxies, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return proxies, nil
}

// Contains reports whether ip belongs to a trusted network.
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address a request is attributed to.
// It is the connection's address unless that address is a trusted proxy, in
// which case X-Forwarded-For is walked from the right to the first untrusted
// hop, falling back to X-Real-IP.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	if !trusted.Contains(remote) {
		return remote
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.Contains(hop) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}
