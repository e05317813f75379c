package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

const manifestName = "updates.json"

// ManifestStore persists the opaque updates manifest. Read leaves v untouched and returns
// ErrObjectNotFound when nothing has been published yet. Storage failures are reported as a
// *TransferError; encoding failures are returned as they are.
type ManifestStore interface {
	Read(ctx context.Context, v interface{}) error
	Write(ctx context.Context, v interface{}) error
}

type blobManifestStore struct {
	storage ObjectStorage
	key     string
}

func NewBlobManifestStore(storage ObjectStorage, remotePath string) ManifestStore {
	return &blobManifestStore{
		storage: storage,
		key:     NormalizeRemotePath(remotePath) + manifestName,
	}
}

func (m *blobManifestStore) Write(ctx context.Context, v interface{}) error {
	data, err := encodeManifest(v)
	if err != nil {
		return err
	}
	return transferError("upload", m.key, m.storage.UploadBytes(ctx, m.key, data))
}

func (m *blobManifestStore) Read(ctx context.Context, v interface{}) error {
	data, err := m.storage.Download(ctx, m.key)
	if errors.Is(err, ErrObjectNotFound) {
		return err
	}
	if err != nil {
		return transferError("download", m.key, err)
	}
	return json.Unmarshal(data, v)
}

// encodeManifest indents with two spaces and leaves &, < and > as they are, since manifests
// carry download URLs with query strings.
func encodeManifest(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
