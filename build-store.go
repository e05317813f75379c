package publisher

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Transport is what the publishing pipeline needs from any storage backend.
type Transport interface {
	UploadFile(ctx context.Context, localFilePath string, build Build) (string, error)
	PushUpdatesJson(ctx context.Context, doc interface{}) error
	FetchBuildsList(ctx context.Context) ([]string, error)
	RemoveBuild(ctx context.Context, build Build) error
	RemoveBuildByID(ctx context.Context, buildID string) error
}

// BuildStore maps local build artifacts onto keys in object storage and reconstructs the set of
// published builds from the key hierarchy. It holds no state besides its configuration and
// collaborators, so it is safe for concurrent use as long as its ObjectStorage is.
type BuildStore struct {
	eventer

	// configuration items that should not change after construction
	remotePath  string
	baseURL     string
	remoteURL   string
	parallelism int

	// collaborators
	storage  ObjectStorage
	identity BuildIdentity
	manifest ManifestStore
}

// NewBuildStore composes a BuildStore over any ObjectStorage. The baseURL is the address of the
// bucket itself (for instance {serviceEndpoint}/{containerName}); the remoteURL is the public base
// that replaces baseURL+remotePath in download links and is derived from it when empty.
func NewBuildStore(storage ObjectStorage, remotePath, baseURL, remoteURL string) *BuildStore {
	remotePath = NormalizeRemotePath(remotePath)
	baseURL = strings.TrimRight(baseURL, "/")
	if remoteURL == "" {
		remoteURL = baseURL + "/" + remotePath
	}
	s := &BuildStore{
		remotePath:  remotePath,
		baseURL:     baseURL,
		remoteURL:   withTrailingSlash(remoteURL),
		parallelism: 1,
		storage:     storage,
		identity:    DefaultIdentity{},
	}
	s.manifest = NewBlobManifestStore(storage, remotePath)
	if r, ok := storage.(interface{ RaiseEventsTo(Eventer) }); ok {
		r.RaiseEventsTo(s)
	}
	return s
}

// NewAzureTransport validates the configuration and returns a BuildStore backed by an Azure
// Blob Storage container. A missing container name, account or key is a ConfigurationError.
func NewAzureTransport(cfg AzureConfig) (*BuildStore, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	storage := NewAzureObjectStorage(cfg.Account, cfg.AccountKey, cfg.ServiceEndpoint, cfg.ContainerName).
		WithLogLevel(cfg.PipelineLogLevel)
	if err := storage.Connect(); err != nil {
		return nil, err
	}
	s := NewBuildStore(storage, cfg.RemotePath, cfg.ServiceEndpoint+"/"+cfg.ContainerName, cfg.RemoteURL).
		WithParallelism(cfg.Parallelism)
	return s, nil
}

func (s *BuildStore) WithIdentity(identity BuildIdentity) *BuildStore {
	s.identity = identity
	return s
}

func (s *BuildStore) WithManifestStore(manifest ManifestStore) *BuildStore {
	s.manifest = manifest
	return s
}

// WithParallelism bounds how many deletes RemoveBuild issues at once. The default of 1 deletes
// objects one after another.
func (s *BuildStore) WithParallelism(val int) *BuildStore {
	if val < 1 {
		val = 1
	}
	s.parallelism = val
	return s
}

func (s *BuildStore) RemotePath() string {
	return s.remotePath
}

// GetOutFilePath returns the object key an artifact is published under. It never touches storage.
func (s *BuildStore) GetOutFilePath(localFilePath string, build Build) string {
	return s.remotePath + s.identity.BuildID(build) + "/" + s.identity.NormalizeFileName(localFilePath)
}

// GetFileURL returns the public download link of an artifact, rooted at the configured remote URL.
func (s *BuildStore) GetFileURL(localFilePath string, build Build) string {
	return s.remoteURL + s.identity.BuildID(build) + "/" + s.identity.NormalizeFileName(localFilePath)
}

func (s *BuildStore) UpdatesJsonURL() string {
	return s.remoteURL + manifestName
}

// UploadFile publishes one artifact of a build, overwriting any object already at its key, and
// returns the object's URL.
func (s *BuildStore) UploadFile(ctx context.Context, localFilePath string, build Build) (string, error) {
	if s.identity.BuildID(build) == "" {
		return "", ErrNoBuildID
	}
	outPath := s.GetOutFilePath(localFilePath, build)
	if err := s.storage.UploadFromPath(ctx, outPath, localFilePath); err != nil {
		return "", transferError("upload", outPath, err)
	}
	url := s.baseURL + "/" + outPath
	s.Emit(UploadedFileEvent, 0, outPath, url)
	return url, nil
}

// PushUpdatesJson overwrites the updates manifest with doc. A doc that cannot be encoded returns
// the encoding error and nothing is uploaded.
func (s *BuildStore) PushUpdatesJson(ctx context.Context, doc interface{}) error {
	if err := s.manifest.Write(ctx, doc); err != nil {
		return err
	}
	s.Emit(PushedManifestEvent, 0, s.remotePath+manifestName, nil)
	return nil
}

// FetchUpdatesJson decodes the current manifest into v. When no manifest was ever pushed, v is
// left untouched and no error is returned. A manifest that does not decode returns the decoding
// error.
func (s *BuildStore) FetchUpdatesJson(ctx context.Context, v interface{}) error {
	err := s.manifest.Read(ctx, v)
	if errors.Is(err, ErrObjectNotFound) {
		s.Emit(MissingManifestEvent, 0, s.remotePath+manifestName, nil)
		return nil
	}
	if err != nil {
		return err
	}
	s.Emit(FetchedManifestEvent, 0, s.remotePath+manifestName, nil)
	return nil
}

// FetchBuildsList returns the ids of the builds directly under the remote path, in listing order.
// Prefixes that do not look like a build id are skipped.
func (s *BuildStore) FetchBuildsList(ctx context.Context) ([]string, error) {
	builds := []string{}
	err := s.storage.ListByDelimiter(ctx, s.remotePath, "/", func(entry Entry) error {
		if entry.Kind != PrefixEntry {
			return nil
		}
		name := strings.TrimSuffix(strings.TrimPrefix(entry.Name, s.remotePath), "/")
		if !IsBuildID(name) {
			s.Emit(SkippedEntryEvent, 0, name, nil)
			return nil
		}
		builds = append(builds, name)
		s.Emit(ListedBuildEvent, len(builds), name, nil)
		return nil
	})
	if err != nil {
		return nil, transferError("list", s.remotePath, err)
	}
	return builds, nil
}

// RemoveBuild deletes every object of the build, including snapshots and versions.
func (s *BuildStore) RemoveBuild(ctx context.Context, build Build) error {
	return s.RemoveBuildByID(ctx, s.identity.BuildID(build))
}

// RemoveBuildByID deletes every object under remotePath+buildID+"/". The trailing slash keeps
// builds whose id starts with buildID (1.0.0 and 1.0.0-beta, say) out of the removal. Objects are listed first and then
// deleted one by one (or up to the configured parallelism); the first failure stops the run and
// deletes that already happened are not rolled back. Removing a build that has no objects succeeds.
func (s *BuildStore) RemoveBuildByID(ctx context.Context, buildID string) error {
	if buildID == "" {
		return ErrNoBuildID
	}
	prefix := s.remotePath + buildID + "/"

	// list everything before deleting anything
	var keys []string
	err := s.storage.ListFlat(ctx, prefix, func(entry Entry) error {
		keys = append(keys, entry.Name)
		return nil
	})
	if err != nil {
		return transferError("list", prefix, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.storage.Delete(gctx, key, DeleteOptions{IncludeVersions: true}); err != nil {
				return transferError("delete", key, err)
			}
			s.Emit(DeletedObjectEvent, 0, key, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Emit(ErrorEvent, 0, "removing a build raised an error", err)
		return err
	}

	s.Emit(RemovedBuildEvent, len(keys), buildID, nil)
	return nil
}

var _ Transport = (*BuildStore)(nil)
