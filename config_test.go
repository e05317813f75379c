package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRemotePath(t *testing.T) {
	testCases := map[string]string{
		"":              "",
		"/":             "",
		"foo":           "foo/",
		"foo/":          "foo/",
		"foo//":         "foo/",
		"releases/beta": "releases/beta/",
		"/releases":     "releases/",
	}
	for input, expected := range testCases {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, NormalizeRemotePath(input))
		})
	}
}

func TestAzureConfig_MissingContainerName(t *testing.T) {
	_, err := AzureConfig{Account: "acct", AccountKey: "a2V5"}.normalize()
	var cerr ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "containerName", cerr.Field)
}

func TestAzureConfig_MissingCredentials(t *testing.T) {
	testCases := map[string]AzureConfig{
		"account":    {ContainerName: "dist", AccountKey: "a2V5"},
		"accountKey": {ContainerName: "dist", Account: "acct"},
	}
	for field, cfg := range testCases {
		t.Run(field, func(t *testing.T) {
			_, err := cfg.normalize()
			var cerr ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, field, cerr.Field)
		})
	}
}

func TestAzureConfig_Defaults(t *testing.T) {
	cfg, err := AzureConfig{
		Account:       "acct",
		AccountKey:    "a2V5",
		ContainerName: "dist",
		RemotePath:    "releases",
	}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net", cfg.ServiceEndpoint)
	assert.Equal(t, "releases/", cfg.RemotePath)
	assert.Equal(t, "https://acct.blob.core.windows.net/dist/releases/", cfg.RemoteURL)
	assert.Equal(t, 1, cfg.Parallelism)
}

func TestAzureConfig_ExplicitValuesAreKept(t *testing.T) {
	cfg, err := AzureConfig{
		Account:         "acct",
		AccountKey:      "a2V5",
		ContainerName:   "dist",
		ServiceEndpoint: "https://acct.blob.example.com/",
		RemoteURL:       "https://cdn.example.com/app",
		Parallelism:     8,
	}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.example.com", cfg.ServiceEndpoint)
	assert.Equal(t, "", cfg.RemotePath)
	assert.Equal(t, "https://cdn.example.com/app/", cfg.RemoteURL)
	assert.Equal(t, 8, cfg.Parallelism)
}

func TestS3Config_Validation(t *testing.T) {
	testCases := map[string]S3Config{
		"bucket":    {Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
		"endpoint":  {Bucket: "dist", AccessKey: "a", SecretKey: "b"},
		"accessKey": {Bucket: "dist", Endpoint: "localhost:9000", AccessKey: "a"},
	}
	for field, cfg := range testCases {
		t.Run(field, func(t *testing.T) {
			_, err := cfg.normalize()
			var cerr ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, field, cerr.Field)
		})
	}
}

func TestS3Config_SchemeIsMovedToUseSSL(t *testing.T) {
	cfg, err := S3Config{
		Endpoint:   "http://localhost:9000/",
		AccessKey:  "a",
		SecretKey:  "b",
		Bucket:     "dist",
		UseSSL:     true,
		RemotePath: "releases/",
	}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.Endpoint)
	assert.False(t, cfg.UseSSL)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "http://localhost:9000", cfg.serviceEndpoint())
	assert.Equal(t, "http://localhost:9000/dist/releases/", cfg.RemoteURL)
}
