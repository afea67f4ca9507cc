package pipeline

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct{ name string }

func (s stubHandler) Name() string { return s.name }

func TestPipeline_AddHandlerPreservesOrder(t *testing.T) {
	p := &Pipeline{}
	p.AddHandler(stubHandler{"a"})
	p.AddHandler(stubHandler{"b"})

	got := p.Handlers()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name())
	assert.Equal(t, "b", got[1].Name())
}

func TestPipeline_Has(t *testing.T) {
	p := &Pipeline{}
	assert.False(t, p.Has("a"))
	p.AddHandler(stubHandler{"a"})
	assert.True(t, p.Has("a"))
	assert.False(t, p.Has("b"))
}

func TestChannel_SetAndValue(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := NewChannel(server)
	_, ok := ch.Value("missing")
	assert.False(t, ok)

	ch.Set("k", 42)
	v, ok := ch.Value("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestChannel_HasUniqueID(t *testing.T) {
	client1, server1 := net.Pipe()
	defer client1.Close()
	defer server1.Close()
	client2, server2 := net.Pipe()
	defer client2.Close()
	defer server2.Close()

	a := NewChannel(server1)
	b := NewChannel(server2)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestWithChannelAndChannelFrom(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := NewChannel(server)
	ctx := WithChannel(context.Background(), ch)
	got, ok := ChannelFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, ch, got)
}
