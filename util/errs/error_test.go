package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrIsByCode(t *testing.T) {
	err := TimerNotFound.Printf("name=%s", "t")
	require.Equal(t, "TIMER_NOT_FOUND,name=t", err.Error())
	require.True(t, errors.Is(err, TimerNotFound))
	require.False(t, errors.Is(err, NoAdapter))
	require.EqualValues(t, ErrCode_TimerNotFound, err.Code())
}

func TestErrWrap(t *testing.T) {
	err := AdapterFailed.Wrap(io.ErrUnexpectedEOF).Printf("op=%s", "save")
	require.True(t, errors.Is(err, AdapterFailed))
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.Equal(t, "ADAPTER_FAILED,op=save: unexpected EOF", err.Error())

	require.Nil(t, WrapError(nil))
	require.True(t, errors.Is(WrapError(io.EOF), Unknown))
	require.True(t, errors.Is(WrapError(EngineClosed), EngineClosed))
}
