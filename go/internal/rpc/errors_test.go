package rpc

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
		kind string
	}{
		{"auth", fmt.Errorf("wrong password: %w", models.ErrAuth), connect.CodeUnauthenticated, "AuthError"},
		{"expired", fmt.Errorf("session x: %w", models.ErrSessionExpired), connect.CodePermissionDenied, "Expired"},
		{"inactive", models.ErrSessionInactive, connect.CodePermissionDenied, "SessionInactive"},
		{"nickname", models.ErrNicknameInvalid, connect.CodeInvalidArgument, "NicknameInvalid"},
		{"argument", models.ErrInvalidArgument, connect.CodeInvalidArgument, "InvalidArgument"},
		{"state", models.ErrInvalidState, connect.CodeFailedPrecondition, "InvalidState"},
		{"not found", models.ErrNotFound, connect.CodeNotFound, "NotFound"},
		{"unclassified", errors.New("disk on fire"), connect.CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ToConnectError(tt.err)
			var cerr *connect.Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.code, cerr.Code())
			assert.Equal(t, tt.kind, cerr.Meta().Get(ErrorKindHeader))
		})
	}

	assert.NoError(t, ToConnectError(nil))
}

func TestFromConnectError(t *testing.T) {
	sentinels := []error{
		models.ErrAuth,
		models.ErrSessionExpired,
		models.ErrSessionInactive,
		models.ErrNicknameInvalid,
		models.ErrInvalidArgument,
		models.ErrInvalidState,
		models.ErrNotFound,
	}
	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			err := FromConnectError(ToConnectError(fmt.Errorf("wrapped: %w", sentinel)))
			assert.ErrorIs(t, err, sentinel)
			assert.NotErrorIs(t, err, models.ErrNetwork)
		})
	}

	t.Run("code without kind header", func(t *testing.T) {
		err := FromConnectError(connect.NewError(connect.CodeUnauthenticated, errors.New("proxy said no")))
		assert.ErrorIs(t, err, models.ErrAuth)
	})

	t.Run("transport failures are network errors", func(t *testing.T) {
		assert.ErrorIs(t, FromConnectError(errors.New("connection refused")), models.ErrNetwork)
		assert.ErrorIs(t, FromConnectError(connect.NewError(connect.CodeUnavailable, errors.New("bad gateway"))), models.ErrNetwork)
		assert.ErrorIs(t, FromConnectError(ToConnectError(errors.New("boom"))), models.ErrNetwork)
	})

	assert.NoError(t, FromConnectError(nil))
}

func TestCodec(t *testing.T) {
	type payload struct {
		Token string `json:"token"`
		Count int    `json:"count"`
	}
	codec := Codec{}
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(&payload{Token: "abc", Count: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc","count":2}`, string(data))

	var out payload
	require.NoError(t, codec.Unmarshal([]byte("  "), &out))
	assert.Equal(t, payload{}, out)

	assert.Error(t, codec.Unmarshal([]byte("{"), &out))
}
