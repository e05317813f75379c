package publisher

const (
	UploadedFileEvent    = "uploaded-file"
	PushedManifestEvent  = "pushed-manifest"
	FetchedManifestEvent = "fetched-manifest"
	MissingManifestEvent = "missing-manifest"
	ListedBuildEvent     = "listed-build"
	SkippedEntryEvent    = "skipped-entry"
	DeletedObjectEvent   = "deleted-object"
	MissingObjectEvent   = "missing-object"
	RemovedBuildEvent    = "removed-build"
	PipelineLogEvent     = "pipeline-log"
	ErrorEvent           = "error"
)
