package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	azureListPageSize = 5000

	// files larger than one block are staged in blocks and committed as a block list
	azureBlockSize        = 4 * 1024 * 1024
	azureStageParallelism = 4
	azureTryTimeout       = 15 * time.Minute
)

// AzureObjectStorage implements ObjectStorage on top of a single Azure Blob Storage container.
type AzureObjectStorage struct {
	repeater

	// configuration items that should not change after construction
	accountName     string
	masterKey       string
	serviceEndpoint string
	containerName   string
	logLevel        pipeline.LogLevel
	blockSize       int64

	// internal properties
	container AzureContainer
	blobs     func(key string) AzureBlob
}

func NewAzureObjectStorage(accountName, masterKey, serviceEndpoint, containerName string) *AzureObjectStorage {
	return &AzureObjectStorage{
		accountName:     accountName,
		masterKey:       masterKey,
		serviceEndpoint: serviceEndpoint,
		containerName:   containerName,
		logLevel:        pipeline.LogNone,
		blockSize:       azureBlockSize,
	}
}

func newMockAzureObjectStorage(container AzureContainer, blobs func(key string) AzureBlob) *AzureObjectStorage {
	return &AzureObjectStorage{
		container: container,
		blobs:     blobs,
		blockSize: azureBlockSize,
	}
}

// WithLogLevel forwards azblob pipeline log lines at or above the level as PipelineLogEvent.
func (s *AzureObjectStorage) WithLogLevel(level pipeline.LogLevel) *AzureObjectStorage {
	s.logLevel = level
	return s
}

// Connect builds the credential, pipeline and container reference. It is a no-op when a
// container was already assigned.
func (s *AzureObjectStorage) Connect() (err error) {
	if s.container != nil {
		return
	}

	// ensure the master key is provided
	if s.masterKey == "" {
		err = ConfigurationError{Field: "accountKey"}
		return
	}

	// create credential
	credential, err := azblob.NewSharedKeyCredential(s.accountName, s.masterKey)
	if err != nil {
		err = ConfigurationError{Field: "accountKey", Reason: err.Error()}
		return
	}

	// create pipeline and container reference
	ref := fmt.Sprintf("%s/%s", strings.TrimRight(s.serviceEndpoint, "/"), s.containerName)
	p := azblob.NewPipeline(credential, azblob.PipelineOptions{
		Retry: azblob.RetryOptions{TryTimeout: azureTryTimeout},
		Log: pipeline.LogOptions{
			Log: func(level pipeline.LogLevel, msg string) {
				s.emit(PipelineLogEvent, int(level), msg, nil)
			},
			ShouldLog: func(level pipeline.LogLevel) bool {
				return level <= s.logLevel
			},
		},
	})
	var u *url.URL
	u, err = url.Parse(ref)
	if err != nil {
		err = ConfigurationError{Field: "serviceEndpoint", Reason: err.Error()}
		return
	}
	s.container = azblob.NewContainerURL(*u, p)

	return
}

func (s *AzureObjectStorage) getBlob(key string) AzureBlob {
	if s.blobs != nil {
		return s.blobs(key)
	}
	// NOTE: s.container only exists after Connect()
	return s.container.NewBlockBlobURL(key)
}

func (s *AzureObjectStorage) upload(ctx context.Context, key string, body io.ReadSeeker) error {
	headers := azblob.BlobHTTPHeaders{ContentType: contentTypeFor(key)}
	_, err := s.getBlob(key).Upload(ctx, body, headers, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.AccessTierNone, nil, azblob.ClientProvidedKeyOptions{})
	return err
}

func (s *AzureObjectStorage) UploadFromPath(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() <= s.blockSize {
		return s.upload(ctx, key, file)
	}
	return s.uploadBlocks(ctx, key, file, info.Size())
}

// uploadBlocks stages the file in blockSize chunks so no single request carries the whole
// artifact, then commits the block list in file order. Nothing is visible under the key until
// the commit succeeds.
func (s *AzureObjectStorage) uploadBlocks(ctx context.Context, key string, file io.ReaderAt, size int64) error {
	blob := s.getBlob(key)
	blockIDs := make([]string, (size+s.blockSize-1)/s.blockSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(azureStageParallelism)
	for i := range blockIDs {
		offset := int64(i) * s.blockSize
		count := min(s.blockSize, size-offset)
		// every id in a block list must have the same length
		id := base64.StdEncoding.EncodeToString([]byte(uuid.NewString()))
		blockIDs[i] = id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			body := io.NewSectionReader(file, offset, count)
			_, err := blob.StageBlock(gctx, id, body, azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	headers := azblob.BlobHTTPHeaders{ContentType: contentTypeFor(key)}
	_, err := blob.CommitBlockList(ctx, blockIDs, headers, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.AccessTierNone, nil, azblob.ClientProvidedKeyOptions{})
	return err
}

func (s *AzureObjectStorage) UploadBytes(ctx context.Context, key string, data []byte) error {
	return s.upload(ctx, key, bytes.NewReader(data))
}

func (s *AzureObjectStorage) Download(ctx context.Context, key string) ([]byte, error) {
	res, err := s.getBlob(key).Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	body := res.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()
	return io.ReadAll(body)
}

func (s *AzureObjectStorage) ListByDelimiter(ctx context.Context, prefix, delimiter string, fn func(Entry) error) error {
	options := azblob.ListBlobsSegmentOptions{
		Prefix:     prefix,
		MaxResults: azureListPageSize,
	}
	for marker := (azblob.Marker{}); marker.NotDone(); {
		res, err := s.container.ListBlobsHierarchySegment(ctx, marker, delimiter, options)
		if err != nil {
			return err
		}
		marker = res.NextMarker
		for _, item := range res.Segment.BlobPrefixes {
			if err := fn(Entry{Name: item.Name, Kind: PrefixEntry}); err != nil {
				return err
			}
		}
		for _, item := range res.Segment.BlobItems {
			if err := fn(Entry{Name: item.Name, Kind: BlobEntry}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AzureObjectStorage) ListFlat(ctx context.Context, prefix string, fn func(Entry) error) error {
	options := azblob.ListBlobsSegmentOptions{
		Prefix:     prefix,
		MaxResults: azureListPageSize,
	}
	for marker := (azblob.Marker{}); marker.NotDone(); {
		res, err := s.container.ListBlobsFlatSegment(ctx, marker, options)
		if err != nil {
			return err
		}
		marker = res.NextMarker
		for _, item := range res.Segment.BlobItems {
			if err := fn(Entry{Name: item.Name, Kind: BlobEntry}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AzureObjectStorage) Delete(ctx context.Context, key string, opts DeleteOptions) error {
	snapshots := azblob.DeleteSnapshotsOptionNone
	if opts.IncludeVersions {
		snapshots = azblob.DeleteSnapshotsOptionInclude
	}
	_, err := s.getBlob(key).Delete(ctx, snapshots, azblob.BlobAccessConditions{})
	if err != nil {
		if isAzureNotFound(err) {
			s.emit(MissingObjectEvent, 0, key, nil)
			return nil
		}
		return err
	}
	return nil
}

func isAzureNotFound(err error) bool {
	serr, ok := err.(azblob.StorageError)
	if !ok {
		return false
	}
	switch serr.ServiceCode() {
	case azblob.ServiceCodeBlobNotFound:
		return true
	}
	// the SDK does not always populate the service code, so fall back to the status
	if res := serr.Response(); res != nil && res.StatusCode == http.StatusNotFound {
		return true
	}
	return false
}

var _ ObjectStorage = (*AzureObjectStorage)(nil)
