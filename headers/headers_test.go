package headers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_AddAndGet(t *testing.T) {
	s := New()
	s.Add("X-Foo", "bar")
	assert.Equal(t, "bar", s.Get("X-Foo"))
	assert.Equal(t, []string{"bar"}, s.Values("X-Foo"))
}

func TestSet_ReplaceOrAdd(t *testing.T) {
	s := New()
	s.Add("X-Foo", "one")
	s.Add("X-Foo", "two")
	s.Set("X-Foo", "three")
	assert.Equal(t, []string{"three"}, s.Values("X-Foo"))
}

func TestSet_CanonicalValues_SplitsCommaList(t *testing.T) {
	s := New()
	s.Add("Connection", "keep-alive, Upgrade")
	assert.ElementsMatch(t, []string{"keep-alive", "Upgrade"}, s.CanonicalValues("Connection"))
}

func TestSet_CanonicalValues_MergesRepeatedHeaderLines(t *testing.T) {
	s := New()
	s.Add("Sec-WebSocket-Protocol", "chat")
	s.Add("Sec-WebSocket-Protocol", "superchat")
	assert.ElementsMatch(t, []string{"chat", "superchat"}, s.CanonicalValues("Sec-WebSocket-Protocol"))
}

func TestSet_SingleCanonicalValue(t *testing.T) {
	s := New()
	s.Add("Sec-WebSocket-Version", "13")
	v, ok := s.SingleCanonicalValue("Sec-WebSocket-Version")
	assert.True(t, ok)
	assert.Equal(t, "13", v)
}

func TestSet_SingleCanonicalValue_AbsentIsNotOk(t *testing.T) {
	s := New()
	_, ok := s.SingleCanonicalValue("Sec-WebSocket-Version")
	assert.False(t, ok)
}

func TestSet_SingleCanonicalValue_DuplicateAcrossLinesIsNotOk(t *testing.T) {
	s := New()
	s.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	s.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	_, ok := s.SingleCanonicalValue("Sec-WebSocket-Key")
	assert.False(t, ok)
}

func TestSet_SingleCanonicalValue_CommaJoinedDuplicateIsNotOk(t *testing.T) {
	s := New()
	s.Add("Sec-WebSocket-Key", "abc, def")
	_, ok := s.SingleCanonicalValue("Sec-WebSocket-Key")
	assert.False(t, ok)
}

func TestFromHTTPHeader_NilBecomesEmpty(t *testing.T) {
	s := FromHTTPHeader(nil)
	assert.NotNil(t, s.Header)
	assert.Empty(t, s.Values("Anything"))
}

func TestFromHTTPHeader_WrapsWithoutCopying(t *testing.T) {
	h := make(http.Header)
	h.Set("X-Foo", "bar")
	s := FromHTTPHeader(h)
	s.Add("X-Foo", "baz")
	assert.Equal(t, []string{"bar", "baz"}, h.Values("X-Foo"))
}
