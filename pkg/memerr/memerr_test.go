package memerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageWithAndWithoutCause(t *testing.T) {
	plain := New(KindValidation, "confidence out of range")
	require.Equal(t, "validation: confidence out of range", plain.Error())

	wrapped := Wrap(KindStorage, "insert row", errors.New("constraint failed"))
	require.Equal(t, "storage: insert row: constraint failed", wrapped.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(KindProvider, "chat call", cause)
	require.ErrorIs(t, wrapped, cause)
}

func TestIsMatchesKind(t *testing.T) {
	err := New(KindPermission, "exceeds grant")
	require.True(t, Is(err, KindPermission))
	require.False(t, Is(err, KindPlugin))
}

func TestIsFalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), KindConfig))
}

func TestIsSeesThroughFmtWrapping(t *testing.T) {
	err := New(KindNotFound, "no concept")
	outer := fmt.Errorf("lookup failed: %w", err)
	require.True(t, Is(outer, KindNotFound))
}

func TestKindStringCoversAllValues(t *testing.T) {
	cases := map[Kind]string{
		KindStorage:    "storage",
		KindEncryption: "encryption",
		KindProvider:   "provider",
		KindValidation: "validation",
		KindPermission: "permission",
		KindPlugin:     "plugin",
		KindNotFound:   "not_found",
		KindConfig:     "config",
	}
	for k, want := range cases {
		require.Equal(t, want, k.String())
	}
	require.Equal(t, "unknown", Kind(99).String())
}
