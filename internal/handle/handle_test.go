package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	tb := NewTable[string]()

	h1 := tb.Put("a")
	h2 := tb.Put("b")
	require.NotEqual(t, Zero, h1)
	require.NotEqual(t, h1, h2)

	v, err := tb.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = tb.Get(h2)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, tb.Len())
}

func TestZeroHandleInvalid(t *testing.T) {
	tb := NewTable[int]()
	_, err := tb.Get(Zero)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, tb.Delete(Zero), ErrInvalidHandle)
}

func TestUnknownIndexInvalid(t *testing.T) {
	tb := NewTable[int]()
	_, err := tb.Get(Handle(99))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestStaleAfterDelete(t *testing.T) {
	tb := NewTable[int]()
	h := tb.Put(7)
	require.NoError(t, tb.Delete(h))

	_, err := tb.Get(h)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.ErrorIs(t, tb.Delete(h), ErrStaleHandle)
	assert.Zero(t, tb.Len())
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	tb := NewTable[int]()
	old := tb.Put(1)
	require.NoError(t, tb.Delete(old))

	// The freed slot is reused, but the old handle must stay dead.
	fresh := tb.Put(2)
	require.NotEqual(t, old, fresh)

	_, err := tb.Get(old)
	assert.ErrorIs(t, err, ErrStaleHandle)

	v, err := tb.Get(fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
