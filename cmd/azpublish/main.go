package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/joho/godotenv"
	publisher "github.com/mspnp/go-publisher"
	goconfig "github.com/plasne/go-config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func init() {

	// an .env file is optional
	_ = godotenv.Load()

	// startup config
	err := goconfig.Startup()
	if err != nil {
		panic(err)
	}

	// configure logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logLevels := map[string]int{
		"trace":    int(zerolog.TraceLevel),
		"debug":    int(zerolog.DebugLevel),
		"info":     int(zerolog.InfoLevel),
		"warn":     int(zerolog.WarnLevel),
		"error":    int(zerolog.ErrorLevel),
		"fatal":    int(zerolog.FatalLevel),
		"panic":    int(zerolog.PanicLevel),
		"nolevel":  int(zerolog.NoLevel),
		"disabled": int(zerolog.Disabled),
	}
	logLevel := goconfig.AsInt().TrySetByEnv("LOG_LEVEL").Lookup(logLevels).Clamp(-1, 7).DefaultTo(int(zerolog.InfoLevel)).PrintLookup(logLevels).Value()
	zerolog.SetGlobalLevel(zerolog.Level(logLevel))

}

func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Literal build id; overrides the other build flags."},
		&cli.StringFlag{Name: "version", Usage: "Build version, for instance 1.2.3."},
		&cli.StringFlag{Name: "platform", Usage: "Build platform, for instance win32, darwin or linux."},
		&cli.StringFlag{Name: "arch", Usage: "Build architecture, for instance x64."},
		&cli.StringFlag{Name: "channel", Value: "prod", Usage: "Release channel."},
	}
}

func buildFromFlags(c *cli.Context) publisher.Build {
	return publisher.Build{
		ID:       c.String("id"),
		Version:  c.String("version"),
		Platform: c.String("platform"),
		Arch:     c.String("arch"),
		Channel:  c.String("channel"),
	}
}

// dryRunStorage backs --dry-run for the lifetime of the process.
var dryRunStorage = publisher.NewMemoryObjectStorage()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("azpublish failed.")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "azpublish",
		Usage: "Publish application builds to Azure Blob Storage or an S3-compatible bucket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Value: "azure", Usage: "Storage backend: azure or s3."},
			&cli.StringFlag{Name: "remote-path", Usage: "Folder inside the container. This overrides REMOTE_PATH."},
			&cli.IntFlag{Name: "parallelism", Usage: "Concurrent deletes when removing a build. This overrides PARALLELISM."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Publish into memory instead of a real bucket."},
		},
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload build artifacts",
				ArgsUsage: "<file>...",
				Flags:     buildFlags(),
				Action:    uploadAction,
			},
			{
				Name:   "list",
				Usage:  "List published build ids",
				Action: listAction,
			},
			{
				Name:      "remove",
				Usage:     "Remove every object of a build",
				ArgsUsage: "[build-id]",
				Flags: append(buildFlags(), &cli.BoolFlag{
					Name:  "raw",
					Usage: "Treat the argument as an already resolved build id.",
				}),
				Action: removeAction,
			},
			{
				Name:      "push-updates",
				Usage:     "Overwrite updates.json with the contents of a local JSON file",
				ArgsUsage: "<file>",
				Action:    pushUpdatesAction,
			},
			{
				Name:   "fetch-updates",
				Usage:  "Print the published updates.json",
				Action: fetchUpdatesAction,
			},
			{
				Name:      "url",
				Usage:     "Print the object key and public URL an artifact would be published to",
				ArgsUsage: "<file>...",
				Flags:     buildFlags(),
				Action:    urlAction,
			},
		},
	}
}

func newStore(c *cli.Context) (*publisher.BuildStore, error) {
	remotePath := goconfig.AsString().TrySetValue(c.String("remote-path")).TrySetByEnv("REMOTE_PATH").Print().Value()
	remoteURL := goconfig.AsString().TrySetByEnv("REMOTE_URL").Print().Value()
	parallelism := goconfig.AsInt().TrySetValue(c.Int("parallelism")).TrySetByEnv("PARALLELISM").DefaultTo(1).Print().Value()

	var store *publisher.BuildStore
	switch {
	case c.Bool("dry-run"):
		store = publisher.NewBuildStore(dryRunStorage, remotePath, "memory://dry-run", remoteURL).
			WithParallelism(parallelism)
	case c.String("backend") == "s3":
		useSSL, _ := strconv.ParseBool(goconfig.AsString().TrySetByEnv("S3_USE_SSL").DefaultTo("true").Print().Value())
		s, err := publisher.NewS3Transport(publisher.S3Config{
			Endpoint:    goconfig.AsString().TrySetByEnv("S3_ENDPOINT").Print().Require().Value(),
			AccessKey:   goconfig.AsString().TrySetByEnv("S3_ACCESS_KEY").Print().Require().Value(),
			SecretKey:   goconfig.AsString().TrySetByEnv("S3_SECRET_KEY").PrintMasked().Require().Value(),
			Bucket:      goconfig.AsString().TrySetByEnv("S3_BUCKET").Print().Require().Value(),
			Region:      goconfig.AsString().TrySetByEnv("S3_REGION").Print().Value(),
			UseSSL:      useSSL,
			RemotePath:  remotePath,
			RemoteURL:   remoteURL,
			Parallelism: parallelism,
		})
		if err != nil {
			return nil, err
		}
		store = s
	case c.String("backend") == "azure":
		pipelineLogLevel := pipeline.LogNone
		if zerolog.GlobalLevel() <= zerolog.TraceLevel {
			pipelineLogLevel = pipeline.LogInfo
		}
		s, err := publisher.NewAzureTransport(publisher.AzureConfig{
			Account:          goconfig.AsString().TrySetByEnv("AZBLOB_ACCOUNT").Print().Require().Value(),
			AccountKey:       goconfig.AsString().TrySetByEnv("AZBLOB_KEY").PrintMasked().Require().Value(),
			ContainerName:    goconfig.AsString().TrySetByEnv("AZBLOB_CONTAINER").Print().Require().Value(),
			ServiceEndpoint:  goconfig.AsString().TrySetByEnv("AZBLOB_URL").Print().Value(),
			RemotePath:       remotePath,
			RemoteURL:        remoteURL,
			Parallelism:      parallelism,
			PipelineLogLevel: pipelineLogLevel,
		})
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown backend %q; expected azure or s3", c.String("backend"))
	}

	store.AddListener(logEvent)
	return store, nil
}

func logEvent(event string, val int, msg string, metadata interface{}) {
	switch event {
	case publisher.UploadedFileEvent:
		log.Info().Str("key", msg).Interface("url", metadata).Msg("uploaded file.")
	case publisher.PushedManifestEvent:
		log.Info().Str("key", msg).Msg("pushed updates manifest.")
	case publisher.FetchedManifestEvent:
		log.Debug().Str("key", msg).Msg("fetched updates manifest.")
	case publisher.MissingManifestEvent:
		log.Warn().Str("key", msg).Msg("no updates manifest has been published yet.")
	case publisher.ListedBuildEvent:
		log.Trace().Int("index", val).Str("build", msg).Msg("found build.")
	case publisher.SkippedEntryEvent:
		log.Debug().Str("name", msg).Msg("skipped a folder that does not look like a build.")
	case publisher.DeletedObjectEvent:
		log.Debug().Str("key", msg).Msg("deleted object.")
	case publisher.MissingObjectEvent:
		log.Debug().Str("key", msg).Msg("object was already gone.")
	case publisher.RemovedBuildEvent:
		log.Info().Str("build", msg).Int("objects", val).Msg("removed build.")
	case publisher.PipelineLogEvent:
		log.Trace().Int("level", val).Msg(msg)
	case publisher.ErrorEvent:
		if err, ok := metadata.(error); ok {
			log.Err(err).Msg(msg)
		} else {
			log.Error().Msg(msg)
		}
	}
}

func uploadAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file must be provided")
	}
	store, err := newStore(c)
	if err != nil {
		return err
	}
	build := buildFromFlags(c)
	for _, file := range c.Args().Slice() {
		url, err := store.UploadFile(c.Context, file, build)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, url)
	}
	return nil
}

func listAction(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}
	builds, err := store.FetchBuildsList(c.Context)
	if err != nil {
		return err
	}
	for _, build := range builds {
		fmt.Fprintln(c.App.Writer, build)
	}
	return nil
}

func removeAction(c *cli.Context) error {
	if c.Bool("raw") && c.NArg() != 1 {
		return fmt.Errorf("--raw expects exactly one build id")
	}
	store, err := newStore(c)
	if err != nil {
		return err
	}
	if c.Bool("raw") {
		return store.RemoveBuildByID(c.Context, c.Args().First())
	}
	return store.RemoveBuild(c.Context, buildFromFlags(c))
}

func pushUpdatesAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one JSON file must be provided")
	}
	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	// the manifest is pushed as written; decoding it would reorder keys and round large numbers
	if !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON", c.Args().First())
	}
	store, err := newStore(c)
	if err != nil {
		return err
	}
	if err := store.PushUpdatesJson(c.Context, json.RawMessage(raw)); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, store.UpdatesJsonURL())
	return nil
}

func fetchUpdatesAction(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}
	var doc json.RawMessage
	if err := store.FetchUpdatesJson(c.Context, &doc); err != nil {
		return err
	}
	if doc == nil {
		fmt.Fprintln(c.App.Writer, "null")
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out.String())
	return nil
}

func urlAction(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}
	build := buildFromFlags(c)
	for _, file := range c.Args().Slice() {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", store.GetOutFilePath(file, build), store.GetFileURL(file, build))
	}
	return nil
}
