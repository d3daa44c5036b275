package transport

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
)

// Jar is a cookie jar that can be flattened to and restored from a
// name→value map, the shape persisted in cookie.json.
// Cookies loaded from a map are scoped to every seed host, mirroring a
// domain-less cookie in a browser-like session.
type Jar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
	seeds []*url.URL
	hosts map[string]*url.URL
}

// NewJar creates an empty jar. Seeds are the base URLs (scheme+host) that
// restored cookies are attached to.
func NewJar(seeds ...string) *Jar {
	j := &Jar{hosts: make(map[string]*url.URL)}
	for _, seed := range seeds {
		if u, err := url.Parse(seed); err == nil && u.Host != "" {
			j.seeds = append(j.seeds, &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"})
		}
	}
	j.inner, _ = cookiejar.New(nil)
	return j
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if u != nil && u.Host != "" {
		j.hosts[u.Host] = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	}
	j.inner.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Clear drops every cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner, _ = cookiejar.New(nil)
	j.hosts = make(map[string]*url.URL)
}

// Update stores each name/value pair on every seed and every host seen so far.
func (j *Jar) Update(values map[string]string) {
	if len(values) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cookies := make([]*http.Cookie, 0, len(values))
	for name, value := range values {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	for _, u := range j.targetsLocked() {
		j.inner.SetCookies(u, cookies)
	}
}

// Snapshot flattens the jar into a name→value map. When the same name exists
// on several hosts, the host visited last in sorted order wins.
func (j *Jar) Snapshot() map[string]string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]string)
	for _, u := range j.targetsLocked() {
		for _, c := range j.inner.Cookies(u) {
			out[c.Name] = c.Value
		}
	}
	return out
}

func (j *Jar) targetsLocked() []*url.URL {
	seen := make(map[string]struct{}, len(j.seeds)+len(j.hosts))
	targets := make([]*url.URL, 0, len(j.seeds)+len(j.hosts))
	for _, u := range j.seeds {
		seen[u.Host] = struct{}{}
		targets = append(targets, u)
	}
	hosts := make([]string, 0, len(j.hosts))
	for host := range j.hosts {
		if _, ok := seen[host]; !ok {
			hosts = append(hosts, host)
		}
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		targets = append(targets, j.hosts[host])
	}
	return targets
}
