// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestArchive(t *testing.T, passphrase string) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(path, passphrase)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, path
}

func TestArchive_SaveAndReadBack(t *testing.T) {
	a, _ := openTestArchive(t, "correct horse")
	ctx := context.Background()

	payload := []byte(`{"latency_ms": 412}`)
	require.NoError(t, a.SaveResult(ctx, "call-1", "plr_test", payload))

	rec, err := a.Result(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "call-1", rec.CallID)
	assert.Equal(t, "plr_test", rec.TestType)
	assert.Equal(t, payload, rec.Data)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestArchive_PayloadEncryptedAtRest(t *testing.T) {
	a, _ := openTestArchive(t, "correct horse")
	ctx := context.Background()

	payload := []byte(`{"latency_ms": 412}`)
	require.NoError(t, a.SaveResult(ctx, "call-1", "plr_test", payload))

	var sealed []byte
	require.NoError(t, a.db.QueryRow(
		`SELECT payload FROM results WHERE call_id = 'call-1'`).Scan(&sealed))
	assert.NotContains(t, string(sealed), "latency_ms",
		"payload must not be stored in the clear")
}

func TestArchive_WrongPassphraseFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	a, err := Open(path, "right")
	require.NoError(t, err)
	require.NoError(t, a.SaveResult(ctx, "call-1", "plr_test", []byte(`{"v":1}`)))
	require.NoError(t, a.Close())

	b, err := Open(path, "wrong")
	require.NoError(t, err, "opening with a wrong passphrase only fails at read time")
	defer b.Close()

	_, err = b.Result(ctx, "call-1")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestArchive_RepeatCallIDReplaces(t *testing.T) {
	a, _ := openTestArchive(t, "pass")
	ctx := context.Background()

	require.NoError(t, a.SaveResult(ctx, "call-1", "plr_test", []byte(`{"v":1}`)))
	require.NoError(t, a.SaveResult(ctx, "call-1", "plr_test", []byte(`{"v":2}`)))

	rec, err := a.Result(ctx, "call-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(rec.Data))

	list, err := a.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchive_ResultNotFound(t *testing.T) {
	a, _ := openTestArchive(t, "pass")
	_, err := a.Result(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_ListNewestFirst(t *testing.T) {
	a, _ := openTestArchive(t, "pass")
	ctx := context.Background()

	require.NoError(t, a.SaveResult(ctx, "call-a", "plr_test", []byte(`{"n":1}`)))
	require.NoError(t, a.SaveResult(ctx, "call-b", "acuity", []byte(`{"n":2}`)))

	list, err := a.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, rec := range list {
		assert.NotEmpty(t, rec.Data)
	}
}

func TestSealer_RejectsMovedBlob(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)
	s, err := newSealer("pass", salt)
	require.NoError(t, err)

	sealed, err := s.seal([]byte("payload"), "call-1")
	require.NoError(t, err)

	// The blob is bound to its call id; replaying it under another fails.
	_, err = s.open(sealed, "call-2")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	plain, err := s.open(sealed, "call-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)
}
