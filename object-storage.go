package publisher

import (
	"context"
	"mime"
	"path"
)

type EntryKind int

const (
	BlobEntry EntryKind = iota
	PrefixEntry
)

// Entry is one item returned by a listing. For a PrefixEntry the Name is the full common prefix
// including the trailing delimiter.
type Entry struct {
	Name string
	Kind EntryKind
}

type DeleteOptions struct {
	IncludeVersions bool
}

// ObjectStorage is the capability a BuildStore needs from a bucket. Listings are lazy: pages are
// fetched as fn consumes them and a non-nil error from fn stops the listing and is returned as-is.
// Deleting a key that does not exist is not an error. Download returns ErrObjectNotFound for a
// missing key.
type ObjectStorage interface {
	UploadFromPath(ctx context.Context, key, localPath string) error
	UploadBytes(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	ListByDelimiter(ctx context.Context, prefix, delimiter string, fn func(Entry) error) error
	ListFlat(ctx context.Context, prefix string, fn func(Entry) error) error
	Delete(ctx context.Context, key string, opts DeleteOptions) error
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
