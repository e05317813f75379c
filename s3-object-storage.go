package publisher

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client is the slice of *minio.Client used by S3ObjectStorage.
type S3Client interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3ObjectStorage implements ObjectStorage on an S3-compatible bucket.
type S3ObjectStorage struct {
	repeater

	bucket string
	client S3Client
}

func NewS3ObjectStorage(cfg S3Config) (*S3ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, ConfigurationError{Field: "endpoint", Reason: err.Error()}
	}
	return &S3ObjectStorage{bucket: cfg.Bucket, client: client}, nil
}

func newMockS3ObjectStorage(bucket string, client S3Client) *S3ObjectStorage {
	return &S3ObjectStorage{bucket: bucket, client: client}
}

// NewS3Transport validates the configuration and returns a BuildStore backed by an S3-compatible bucket.
func NewS3Transport(cfg S3Config) (*BuildStore, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	storage, err := NewS3ObjectStorage(cfg)
	if err != nil {
		return nil, err
	}
	s := NewBuildStore(storage, cfg.RemotePath, cfg.serviceEndpoint()+"/"+cfg.Bucket, cfg.RemoteURL).
		WithParallelism(cfg.Parallelism)
	return s, nil
}

func (s *S3ObjectStorage) UploadFromPath(ctx context.Context, key, localPath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentTypeFor(key)})
	return err
}

func (s *S3ObjectStorage) UploadBytes(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentTypeFor(key)})
	return err
}

func (s *S3ObjectStorage) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.notFoundOr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.notFoundOr(err)
	}
	return data, nil
}

func (s *S3ObjectStorage) notFoundOr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}

func (s *S3ObjectStorage) list(ctx context.Context, opts minio.ListObjectsOptions, fn func(minio.ObjectInfo) error) error {

	// cancelling stops the listing goroutine if fn bails out early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

// ListByDelimiter only supports "/" because that is the only delimiter minio lets callers choose.
func (s *S3ObjectStorage) ListByDelimiter(ctx context.Context, prefix, delimiter string, fn func(Entry) error) error {
	if delimiter != "/" {
		return ErrUnsupportedDelimiter
	}
	return s.list(ctx, minio.ListObjectsOptions{Prefix: prefix}, func(obj minio.ObjectInfo) error {
		kind := BlobEntry
		if len(obj.Key) > 0 && obj.Key[len(obj.Key)-1] == '/' {
			kind = PrefixEntry
		}
		return fn(Entry{Name: obj.Key, Kind: kind})
	})
}

func (s *S3ObjectStorage) ListFlat(ctx context.Context, prefix string, fn func(Entry) error) error {
	return s.list(ctx, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}, func(obj minio.ObjectInfo) error {
		return fn(Entry{Name: obj.Key, Kind: BlobEntry})
	})
}

func (s *S3ObjectStorage) Delete(ctx context.Context, key string, opts DeleteOptions) error {
	var versions []string
	if opts.IncludeVersions {
		err := s.list(ctx, minio.ListObjectsOptions{Prefix: key, WithVersions: true}, func(obj minio.ObjectInfo) error {
			if obj.Key == key && obj.VersionID != "" {
				versions = append(versions, obj.VersionID)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if len(versions) == 0 {
		versions = []string{""}
	}
	for _, version := range versions {
		err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{VersionID: version})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				s.emit(MissingObjectEvent, 0, key, nil)
				continue
			}
			return err
		}
	}
	return nil
}

var _ ObjectStorage = (*S3ObjectStorage)(nil)
