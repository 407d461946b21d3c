package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	type tc struct {
		code  string
		typ   string
		fatal bool
	}

	for _, c := range []tc{
		{code: "invalid_api_key", typ: "invalid_request_error", fatal: true},
		{code: "insufficient_quota", fatal: true},
		{code: "", typ: "authentication_error", fatal: true},
		{code: "RESOURCE_EXHAUSTED", fatal: true},
		{code: "PERMISSION_DENIED", fatal: true},
		{code: "server_error", typ: "server_error", fatal: false},
		{code: "input_audio_buffer_commit_empty", typ: "invalid_request_error", fatal: false},
		{code: "", typ: "", fatal: false},
	} {
		e := NewError(c.code, c.typ, "boom")
		require.Equal(t, c.fatal, e.Fatal, "code=%s type=%s", c.code, c.typ)
	}
}

func TestErrorWrapsRemote(t *testing.T) {
	var err error = NewError("server_error", "", "try again")
	require.True(t, errors.Is(err, ErrRemote))
	require.Equal(t, "remote error [server_error]: try again", err.Error())

	var pe *Error
	require.True(t, errors.As(err, &pe))
	require.Equal(t, KindError, pe.Kind())
}

func TestID(t *testing.T) {
	a, b := ID(), ID()
	require.Len(t, a, len("rtv_")+16)
	require.Regexp(t, `^rtv_[0-9a-z]{16}$`, a)
	require.NotEqual(t, a, b)
}
