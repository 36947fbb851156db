package exporter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
)

func newTestStore(t *testing.T) store.Storer {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedOwner(t *testing.T, s store.Storer, owner string) {
	t.Helper()
	text := "had coffee with Sam"
	require.NoError(t, s.PutRawMemory(&store.RawMemory{
		ID: owner + "-raw1", Owner: owner, ContentType: store.ContentText,
		Plaintext: &text, CreatedAt: 1000,
	}))
	require.NoError(t, s.UpsertEntity(&store.Entity{
		ID: owner + "-ent1", Owner: owner, CanonicalName: "sam",
		Type: store.EntityPerson, FirstSeen: 1000, LastSeen: 1000,
	}))
}

func TestExportGathersEveryRecordKind(t *testing.T) {
	s := newTestStore(t)
	seedOwner(t, s, "alice")
	seedOwner(t, s, "bob")

	ex := New(s)
	export, err := ex.Export("alice")
	require.NoError(t, err)
	require.Equal(t, "alice", export.Owner)
	require.Len(t, export.RawMemories, 1)
	require.Len(t, export.Entities, 1)
	require.Equal(t, 1, export.Metadata.RawMemoryCount)
	require.Equal(t, 1, export.Metadata.EntityCount)
}

func TestExportEncryptedRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedOwner(t, s, "alice")

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	box, err := cryptobox.NewFromKey(key)
	require.NoError(t, err)

	ex := New(s)
	enc, err := ex.ExportEncrypted("alice", box)
	require.NoError(t, err)
	require.NotEmpty(t, enc.EncryptedData)
	require.NotEmpty(t, enc.Checksum)

	decoded, err := Decrypt(enc, box)
	require.NoError(t, err)
	require.Equal(t, "alice", decoded.Owner)
	require.Len(t, decoded.RawMemories, 1)
}

func TestDecryptRejectsTamperedChecksum(t *testing.T) {
	s := newTestStore(t)
	seedOwner(t, s, "alice")

	key := make([]byte, 32)
	box, err := cryptobox.NewFromKey(key)
	require.NoError(t, err)

	enc, err := New(s).ExportEncrypted("alice", box)
	require.NoError(t, err)
	enc.Checksum = "deadbeef"

	_, err = Decrypt(enc, box)
	require.Error(t, err)
}

func TestImportRestoresIntoEmptyStore(t *testing.T) {
	src := newTestStore(t)
	seedOwner(t, src, "alice")
	export, err := New(src).Export("alice")
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, NewImporter(dst).Import(export))

	got, err := dst.ListRawMemories("alice")
	require.NoError(t, err)
	require.Len(t, got, 1)

	ents, err := dst.ListEntities("alice")
	require.NoError(t, err)
	require.Len(t, ents, 1)
}
