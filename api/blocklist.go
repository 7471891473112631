package api

import (
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/rpupo63/blog-backend/errs"
	"github.com/rs/zerolog/log"
)

// ipBlocklist is the process-wide set of client addresses refused with 403.
// It lives in memory only.
type ipBlocklist struct {
	mu        sync.RWMutex
	ips       map[string]struct{}
	responder Responder
}

func newIPBlocklist(ips []string) *ipBlocklist {
	b := &ipBlocklist{
		ips:       map[string]struct{}{},
		responder: NewResponder(log.With().Str("handlerName", "ipBlocklist").Logger()),
	}
	for _, ip := range ips {
		b.Block(ip)
	}
	return b
}

// normalizeIP returns the canonical text form of ip, or "" when it is not an
// address.
func normalizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	return parsed.String()
}

func (b *ipBlocklist) Block(ip string) bool {
	ip = normalizeIP(ip)
	if ip == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ips[ip] = struct{}{}
	return true
}

// Unblock reports whether ip was on the list.
func (b *ipBlocklist) Unblock(ip string) bool {
	ip = normalizeIP(ip)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ips[ip]; !ok {
		return false
	}
	delete(b.ips, ip)
	return true
}

func (b *ipBlocklist) Blocked(ip string) bool {
	ip = normalizeIP(ip)
	if ip == "" {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ips[ip]
	return ok
}

func (b *ipBlocklist) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ips := make([]string, 0, len(b.ips))
	for ip := range b.ips {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// middleware refuses requests from blocked clients before any handler runs.
func (b *ipBlocklist) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Blocked(clientIP(r)) {
			b.responder.WriteError(w, errs.NewBlockedClientError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of RemoteAddr. trustedRealIP rewrites RemoteAddr
// from forwarding headers only for requests relayed by a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
