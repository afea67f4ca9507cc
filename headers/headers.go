// Package headers models the request head and header multimap that
// wsupgrade consumes and produces. It is a thin wrapper over net/http.Header
// that adds a canonical-form accessor for list-type headers: splitting a
// comma-separated value into its individual, trimmed elements, per RFC 7230
// §3.2.6 list syntax, the form wsupgrade relies on when validating the
// Sec-WebSocket-Key, Sec-WebSocket-Version, Upgrade and Connection headers.
package headers

import (
	"net/http"
	"strings"
)

// Set is a case-insensitive multimap from header name to an ordered list of
// values, matching the semantics of net/http.Header.
type Set struct {
	http.Header
}

// New returns an empty header Set.
func New() Set {
	return Set{Header: make(http.Header)}
}

// FromHTTPHeader adapts an existing net/http.Header without copying.
func FromHTTPHeader(h http.Header) Set {
	if h == nil {
		h = make(http.Header)
	}
	return Set{Header: h}
}

// Add appends a value, preserving any existing values under name.
func (s Set) Add(name, value string) {
	s.Header.Add(name, value)
}

// Set replaces all values for name with the single given value
// (replace-or-add).
func (s Set) Set(name, value string) {
	s.Header.Set(name, value)
}

// Get returns the first value for name, or "" if absent.
func (s Set) Get(name string) string {
	return s.Header.Get(name)
}

// Values returns the raw (un-split) values for name, in insertion order.
func (s Set) Values(name string) []string {
	return s.Header.Values(name)
}

// CanonicalValues returns every element of every value stored under name,
// after splitting each value on commas per RFC 7230 §3.2.6 list syntax.
// A header sent as two separate lines, or one line with comma-separated
// values, yields the same CanonicalValues result.
func (s Set) CanonicalValues(name string) []string {
	var out []string
	for _, raw := range s.Header.Values(name) {
		if raw == "" {
			continue
		}
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// SingleCanonicalValue returns the lone canonical value for name, reporting
// ok=false if there were zero or more than one comma-separated elements
// across all occurrences of the header — exactly the shape upgrade
// validation needs for Sec-WebSocket-Key / Sec-WebSocket-Version.
func (s Set) SingleCanonicalValue(name string) (value string, ok bool) {
	vs := s.CanonicalValues(name)
	if len(vs) != 1 {
		return "", false
	}
	return vs[0], true
}

// Head is the decoded HTTP/1.1 request head the Upgrader validates.
type Head struct {
	Method  string
	URI     string
	Version string
	Headers Set
}
