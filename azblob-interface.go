package publisher

import (
	"context"
	"io"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureContainer is the slice of azblob.ContainerURL used for listing and blob addressing.
type AzureContainer interface {
	NewBlockBlobURL(string) azblob.BlockBlobURL
	ListBlobsHierarchySegment(context.Context, azblob.Marker, string, azblob.ListBlobsSegmentOptions) (*azblob.ListBlobsHierarchySegmentResponse, error)
	ListBlobsFlatSegment(context.Context, azblob.Marker, azblob.ListBlobsSegmentOptions) (*azblob.ListBlobsFlatSegmentResponse, error)
}

// AzureBlob is the slice of azblob.BlockBlobURL used for a single object.
type AzureBlob interface {
	Upload(context.Context, io.ReadSeeker, azblob.BlobHTTPHeaders, azblob.Metadata, azblob.BlobAccessConditions, azblob.AccessTierType, azblob.BlobTagsMap, azblob.ClientProvidedKeyOptions) (*azblob.BlockBlobUploadResponse, error)
	StageBlock(context.Context, string, io.ReadSeeker, azblob.LeaseAccessConditions, []byte, azblob.ClientProvidedKeyOptions) (*azblob.BlockBlobStageBlockResponse, error)
	CommitBlockList(context.Context, []string, azblob.BlobHTTPHeaders, azblob.Metadata, azblob.BlobAccessConditions, azblob.AccessTierType, azblob.BlobTagsMap, azblob.ClientProvidedKeyOptions) (*azblob.BlockBlobCommitBlockListResponse, error)
	Download(context.Context, int64, int64, azblob.BlobAccessConditions, bool, azblob.ClientProvidedKeyOptions) (*azblob.DownloadResponse, error)
	Delete(context.Context, azblob.DeleteSnapshotsOptionType, azblob.BlobAccessConditions) (*azblob.BlobDeleteResponse, error)
}
