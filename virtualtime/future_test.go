package virtualtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolveSettlesOnce(t *testing.T) {
	f, p := NewFuture[int]()
	require.True(t, f.IsPending())

	p.Resolve(42)
	p.Resolve(7) // no-op, already settled

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future did not settle")
	}

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, f.IsPending())
}

func TestFuture_RejectNilIsNoOp(t *testing.T) {
	f, p := NewFuture[int]()
	p.Reject(nil)
	assert.True(t, f.IsPending())

	p.Reject(errors.New("boom"))
	require.False(t, f.IsPending())
	_, err := f.Get()
	assert.EqualError(t, err, "boom")
}

func TestFuture_DoneBeforeAndAfterSettle(t *testing.T) {
	f, p := NewFuture[string]()

	ch1 := f.Done()
	select {
	case <-ch1:
		t.Fatal("should not be closed yet")
	default:
	}

	p.Resolve("ok")

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("channel obtained before settle never closed")
	}

	// A Done() channel obtained after settling is already closed.
	ch2 := f.Done()
	select {
	case <-ch2:
	default:
		t.Fatal("channel obtained after settle should be pre-closed")
	}
}

func TestSucceededAndFailed(t *testing.T) {
	f := Succeeded(7)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, f.IsPending())

	boom := errors.New("boom")
	g := Failed[int](boom)
	_, err = g.Get()
	assert.Equal(t, boom, err)
}

func TestMap(t *testing.T) {
	src, p := NewFuture[int]()
	mapped := Map(src, func(v int) string {
		if v == 0 {
			return "zero"
		}
		return "nonzero"
	})
	p.Resolve(0)

	<-mapped.Done()
	v, err := mapped.Get()
	require.NoError(t, err)
	assert.Equal(t, "zero", v)
}

func TestMap_PropagatesRejection(t *testing.T) {
	src, p := NewFuture[int]()
	mapped := Map(src, func(v int) int { return v * 2 })
	boom := errors.New("boom")
	p.Reject(boom)

	<-mapped.Done()
	_, err := mapped.Get()
	assert.Equal(t, boom, err)
}

func TestFlatMap(t *testing.T) {
	src, p := NewFuture[int]()
	out := FlatMap(src, func(v int) *Future[int] {
		return Succeeded(v + 1)
	})
	p.Resolve(41)

	<-out.Done()
	v, err := out.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFlatMap_NilCallbackResult(t *testing.T) {
	src, p := NewFuture[int]()
	out := FlatMap(src, func(v int) *Future[int] { return nil })
	p.Resolve(1)

	<-out.Done()
	_, err := out.Get()
	assert.ErrorIs(t, err, ErrLoopTerminated)
}

func TestCascade(t *testing.T) {
	src, srcP := NewFuture[int]()
	dst, dstP := NewFuture[int]()
	Cascade(src, dstP)

	srcP.Resolve(9)
	<-dst.Done()
	v, err := dst.Get()
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}
