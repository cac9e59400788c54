package steamlang

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureEResultResponse(t *testing.T) {
	t.Run("missing header is success", func(t *testing.T) {
		require.NoError(t, EnsureEResultResponse(&http.Response{Header: http.Header{}}))
	})

	t.Run("ok header is success", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Eresult", "1")
		require.NoError(t, EnsureEResultResponse(&http.Response{Header: header}))
	})

	t.Run("non-ok header carries result and message", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Eresult", "88")
		header.Set("X-Error_message", "bad code")

		err := EnsureEResultResponse(&http.Response{Header: header})
		require.Error(t, err)
		require.Equal(t, TwoFactorCodeMismatchResult, ResultOf(err))
		require.True(t, ResultOf(err).IsCodeRejection())
		require.Contains(t, err.Error(), "bad code")
	})
}

func TestEMsgWire(t *testing.T) {
	msg, isProto := MsgFromWire(EMsgClientLogon.Wire())
	require.True(t, isProto)
	require.Equal(t, EMsgClientLogon, msg)

	msg, isProto = MsgFromWire(uint32(EMsgMulti))
	require.False(t, isProto)
	require.Equal(t, EMsgMulti, msg)
}

func TestEResultString(t *testing.T) {
	require.Equal(t, "InvalidPassword", InvalidPasswordResult.String())
	require.Equal(t, "EResult(4242)", EResult(4242).String())
}
