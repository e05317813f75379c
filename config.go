package publisher

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-pipeline-go/pipeline"
)

// AzureConfig enumerates every option an Azure backed BuildStore recognizes.
type AzureConfig struct {
	Account       string
	AccountKey    string
	ContainerName string

	// ServiceEndpoint defaults to https://{Account}.blob.core.windows.net
	ServiceEndpoint string

	// RemotePath is the "folder" inside the container; it is either empty or ends with "/".
	RemotePath string

	// RemoteURL is the public base for download links; defaults to {ServiceEndpoint}/{ContainerName}/{RemotePath}.
	RemoteURL string

	// Parallelism bounds concurrent deletes in RemoveBuild; anything below 1 means sequential.
	Parallelism int

	// PipelineLogLevel forwards azblob request logs at or above this level as PipelineLogEvent.
	PipelineLogLevel pipeline.LogLevel
}

func (c AzureConfig) normalize() (AzureConfig, error) {
	if c.ContainerName == "" {
		return c, ConfigurationError{Field: "containerName"}
	}
	if c.Account == "" {
		return c, ConfigurationError{Field: "account"}
	}
	if c.AccountKey == "" {
		return c, ConfigurationError{Field: "accountKey"}
	}
	if c.ServiceEndpoint == "" {
		c.ServiceEndpoint = fmt.Sprintf("https://%s.blob.core.windows.net", c.Account)
	}
	c.ServiceEndpoint = strings.TrimRight(c.ServiceEndpoint, "/")
	c.RemotePath = NormalizeRemotePath(c.RemotePath)
	if c.RemoteURL == "" {
		c.RemoteURL = fmt.Sprintf("%s/%s/%s", c.ServiceEndpoint, c.ContainerName, c.RemotePath)
	}
	c.RemoteURL = withTrailingSlash(c.RemoteURL)
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	return c, nil
}

// S3Config enumerates the options of an S3-compatible BuildStore.
type S3Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	Region      string
	UseSSL      bool
	RemotePath  string
	RemoteURL   string
	Parallelism int
}

func (c S3Config) normalize() (S3Config, error) {
	if c.Bucket == "" {
		return c, ConfigurationError{Field: "bucket"}
	}
	if c.Endpoint == "" {
		return c, ConfigurationError{Field: "endpoint"}
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return c, ConfigurationError{Field: "accessKey", Reason: "both the access key and the secret key must be provided."}
	}

	// minio wants a bare host, the scheme is carried by UseSSL
	switch {
	case strings.HasPrefix(c.Endpoint, "https://"):
		c.UseSSL = true
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "https://")
	case strings.HasPrefix(c.Endpoint, "http://"):
		c.UseSSL = false
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "http://")
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	c.RemotePath = NormalizeRemotePath(c.RemotePath)
	if c.RemoteURL == "" {
		c.RemoteURL = fmt.Sprintf("%s/%s/%s", c.serviceEndpoint(), c.Bucket, c.RemotePath)
	}
	c.RemoteURL = withTrailingSlash(c.RemoteURL)
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	return c, nil
}

func (c S3Config) serviceEndpoint() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// NormalizeRemotePath returns "" for an empty prefix and otherwise the prefix with exactly one trailing "/".
func NormalizeRemotePath(p string) string {
	p = strings.TrimLeft(strings.TrimRight(p, "/"), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
