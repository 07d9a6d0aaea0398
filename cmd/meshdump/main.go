// Command meshdump builds the world once and writes every chunk mesh to a
// .mesh.zst file for offline upload to a renderer.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"voxelmesh.ai/internal/catalogs"
	"voxelmesh.ai/internal/persistence/objstore"
	"voxelmesh.ai/internal/tuning"
	"voxelmesh.ai/internal/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		outDir     = flag.String("out", "./data/meshes", "output directory (a run subdirectory is created)")
		seed       = flag.Int64("seed", 0, "override tuning seed (0 keeps the configured seed)")
		radius     = flag.Int("radius", 0, "override world_radius_chunks (0 keeps the configured radius)")
		skipEmpty  = flag.Bool("skip_empty", false, "do not write chunks without faces")
		verify     = flag.Bool("verify", true, "read every file back and check its header")

		uploadEndpoint = flag.String("upload_endpoint", "", "S3-compatible endpoint; empty disables upload")
		uploadBucket   = flag.String("upload_bucket", "", "bucket for uploaded meshes")
		uploadPrefix   = flag.String("upload_prefix", "meshes", "object key prefix")
		uploadWorkers  = flag.Int("upload_workers", 4, "concurrent uploads")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[meshdump] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, found, err := tuning.LoadOrDefault(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if !found {
		logger.Printf("tuning not found (%s); using defaults", tp)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *radius > 0 {
		tune.WorldRadiusChunks = *radius
	}

	m, err := world.New(tune, cats, world.WithLogger(logger))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	color.Blue("Building world (radius=%d seed=%d)...", tune.WorldRadiusChunks, tune.Seed)
	start := time.Now()
	m.Generate()

	runID := uuid.NewString()
	rep, err := dump(m, dumpOptions{
		Dir:       filepath.Join(*outDir, runID),
		RunID:     runID,
		SkipEmpty: *skipEmpty,
		Verify:    *verify,
	})
	if err != nil {
		color.Red("Export failed: %v", err)
		os.Exit(1)
	}

	color.Green("Exported %d meshes to %s", rep.Files, rep.Dir)
	for _, l := range rep.Layers() {
		st := rep.ByLayer[l]
		color.Cyan("  %-6s chunks=%d faces=%s size=%s", l, st.Files, humanize.Comma(int64(st.Faces)), humanize.Bytes(uint64(st.Bytes)))
	}
	if rep.Skipped > 0 {
		color.Yellow("  skipped %d empty chunks", rep.Skipped)
	}
	color.Green("Total %s in %s", humanize.Bytes(uint64(rep.Bytes)), time.Since(start).Round(time.Millisecond))

	if strings.TrimSpace(*uploadEndpoint) == "" {
		return
	}
	if err := upload(rep, uploadConfig{
		Endpoint: *uploadEndpoint,
		Bucket:   *uploadBucket,
		Prefix:   *uploadPrefix,
		Workers:  *uploadWorkers,
		BaseDir:  *outDir,
	}, logger); err != nil {
		color.Red("Upload failed: %v", err)
		os.Exit(1)
	}
}

type uploadConfig struct {
	Endpoint string
	Bucket   string
	Prefix   string
	Workers  int
	BaseDir  string
}

// upload pushes every exported file. Credentials come from the environment so
// they never show up in shell history.
func upload(rep *report, cfg uploadConfig, logger *log.Logger) error {
	client, err := objstore.NewClient(objstore.Config{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		Region:          os.Getenv("VM_UPLOAD_REGION"),
		AccessKeyID:     os.Getenv("VM_UPLOAD_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("VM_UPLOAD_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return err
	}
	up := objstore.NewUploader(client, cfg.BaseDir, cfg.Prefix, cfg.Workers, logger)
	ctx := context.Background()
	for _, p := range rep.Paths {
		if err := up.Enqueue(ctx, p); err != nil {
			break
		}
	}
	st, err := up.Wait()
	color.Green("Uploaded %d meshes to %s/%s (failed=%d)", st.Uploaded, cfg.Bucket, cfg.Prefix, st.Failed)
	return err
}
