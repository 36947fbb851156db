package exporter

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// Importer restores a decrypted UserDataExport's contents into a Storer.
type Importer struct {
	store store.Storer
}

// NewImporter builds an Importer over s.
func NewImporter(s store.Storer) *Importer {
	return &Importer{store: s}
}

// Decrypt opens enc with box, verifies its checksum against the
// decrypted payload, and returns the UserDataExport it contains.
// Verifying before Import runs protects against restoring a backup
// that was truncated or tampered with in transit.
func Decrypt(enc *EncryptedExport, box *cryptobox.Box) (*UserDataExport, error) {
	sealed, err := base64.StdEncoding.DecodeString(enc.EncryptedData)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindEncryption, "decode encrypted export", err)
	}
	plain, err := box.Decrypt(sealed)
	if err != nil {
		return nil, err
	}

	sum := fmt.Sprintf("%x", md5.Sum(plain))
	if sum != enc.Checksum {
		return nil, memerr.New(memerr.KindValidation, "export checksum mismatch: backup may be corrupt")
	}

	var export UserDataExport
	if err := json.Unmarshal(plain, &export); err != nil {
		return nil, memerr.Wrap(memerr.KindValidation, "unmarshal export", err)
	}
	return &export, nil
}

// Import writes every record in export into the importer's store. It
// does not delete or overwrite existing rows with the same owner;
// callers restoring into an empty install should verify that first.
func (im *Importer) Import(export *UserDataExport) error {
	if export == nil {
		return memerr.New(memerr.KindValidation, "nil export")
	}

	for _, r := range export.RawMemories {
		if err := im.store.PutRawMemory(r); err != nil {
			return err
		}
	}
	if len(export.Events) > 0 {
		if err := im.store.PutEvents(export.Events); err != nil {
			return err
		}
	}
	for _, e := range export.Entities {
		if err := im.store.UpsertEntity(e); err != nil {
			return err
		}
	}
	for _, r := range export.Relations {
		if err := im.store.UpsertRelation(r); err != nil {
			return err
		}
	}
	for _, v := range export.Views {
		if err := im.store.CreateView(v); err != nil {
			return err
		}
	}
	for _, c := range export.Concepts {
		if err := im.store.CreateConcept(c); err != nil {
			return err
		}
	}
	return nil
}
