package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_NoPanic(t *testing.T) {
	ran := false
	err := Do(func() { ran = true })

	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestDo_Panic(t *testing.T) {
	var handled any
	err := Do(func() { panic("boom") }, WithHandler(func(p any, stack []byte) {
		handled = p
		assert.NotEmpty(t, stack)
	}), WithStackSize(1024))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, "panic: boom", pe.Error())
	assert.LessOrEqual(t, len(pe.Stack), 1024)
	assert.Equal(t, "boom", handled)
	assert.Nil(t, pe.Unwrap())
}

func TestDo_PanicWithError(t *testing.T) {
	cause := errors.New("cause")
	err := Do(func() { panic(cause) }, WithComponent("test"), WithStackAll(true))

	assert.ErrorIs(t, err, cause)
}
