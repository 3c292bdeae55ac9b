package intel

import (
	"net/http"
	"strings"
)

// CookieJar is an ordered name/value store serialized into a Cookie header.
// Unlike net/http/cookiejar it is domain-agnostic on purpose: the upstream
// service and its identity provider share one logical session, and callers
// may inject cookies harvested from a real browser without knowing their
// original scope.
//
// A CookieJar is not safe for concurrent use; Session guards access and
// commits updates by swapping in a fresh jar.
type CookieJar struct {
	order  []string
	values map[string]string
}

// NewCookieJar returns an empty jar.
func NewCookieJar() *CookieJar {
	return &CookieJar{values: make(map[string]string)}
}

// Add inserts or overwrites a cookie. Overwriting keeps the original
// insertion position so header serialization stays stable.
func (j *CookieJar) Add(name, value string) {
	if _, ok := j.values[name]; !ok {
		j.order = append(j.order, name)
	}
	j.values[name] = value
}

// Get returns the value for name and whether it is present.
func (j *CookieJar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

// Remove deletes a cookie by name. Removing an absent name is a no-op.
func (j *CookieJar) Remove(name string) {
	if _, ok := j.values[name]; !ok {
		return
	}
	delete(j.values, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of stored cookies.
func (j *CookieJar) Len() int {
	return len(j.order)
}

// Merge overlays other onto the jar: matching names are overwritten, new
// names are appended in other's order.
func (j *CookieJar) Merge(other *CookieJar) {
	if other == nil {
		return
	}
	for _, name := range other.order {
		j.Add(name, other.values[name])
	}
}

// MergeCookies folds response Set-Cookie values into the jar.
func (j *CookieJar) MergeCookies(cookies []*http.Cookie) {
	for _, c := range cookies {
		j.Add(c.Name, c.Value)
	}
}

// Clone returns an independent copy of the jar.
func (j *CookieJar) Clone() *CookieJar {
	clone := &CookieJar{
		order:  make([]string, len(j.order)),
		values: make(map[string]string, len(j.values)),
	}
	copy(clone.order, j.order)
	for k, v := range j.values {
		clone.values[k] = v
	}
	return clone
}

// Header serializes the jar in Cookie header form: "a=1; b=2".
func (j *CookieJar) Header() string {
	var sb strings.Builder
	for i, name := range j.order {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(j.values[name])
	}
	return sb.String()
}

// ParseCookieHeader builds a jar from a Cookie header string, the inverse of
// Header. Useful for restoring a session persisted by the embedder.
func ParseCookieHeader(header string) *CookieJar {
	jar := NewCookieJar()
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			continue
		}
		jar.Add(name, value)
	}
	return jar
}
