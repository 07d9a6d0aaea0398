package objstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type Stats struct {
	Uploaded uint64
	Failed   uint64
}

type putter interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

// Uploader pushes files under a base directory to the bucket with a fixed
// worker pool. Object keys are the path relative to baseDir, under prefix.
type Uploader struct {
	client  putter
	baseDir string
	prefix  string
	logger  *log.Logger
	backoff func(attempt int) time.Duration

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once

	uploaded atomic.Uint64
	failed   atomic.Uint64

	mu   sync.Mutex
	errs []error
}

const maxAttempts = 4

func NewUploader(client *Client, baseDir, prefix string, workers int, logger *log.Logger) *Uploader {
	return newUploader(client, baseDir, prefix, workers, logger)
}

func newUploader(client putter, baseDir, prefix string, workers int, logger *log.Logger) *Uploader {
	if workers <= 0 {
		workers = 1
	}
	u := &Uploader{
		client:  client,
		baseDir: baseDir,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:  logger,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt*attempt) * 200 * time.Millisecond },
		jobs:    make(chan string, workers*2),
	}
	for i := 0; i < workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for p := range u.jobs {
				u.uploadOne(p)
			}
		}()
	}
	return u
}

// Enqueue blocks until a worker slot frees up or ctx is done.
func (u *Uploader) Enqueue(ctx context.Context, localPath string) error {
	select {
	case u.jobs <- localPath:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait stops accepting files, waits for in-flight uploads and returns the
// joined upload errors.
func (u *Uploader) Wait() (Stats, error) {
	u.once.Do(func() { close(u.jobs) })
	u.wg.Wait()
	u.mu.Lock()
	defer u.mu.Unlock()
	return Stats{Uploaded: u.uploaded.Load(), Failed: u.failed.Load()}, errors.Join(u.errs...)
}

func (u *Uploader) uploadOne(localPath string) {
	key, err := u.objectKey(localPath)
	if err == nil {
		err = u.uploadWithRetry(key, localPath)
	}
	if err != nil {
		u.failed.Inc()
		u.mu.Lock()
		u.errs = append(u.errs, fmt.Errorf("%s: %w", localPath, err))
		u.mu.Unlock()
		u.printf("upload failed local=%s err=%v", localPath, err)
		return
	}
	u.uploaded.Inc()
}

func (u *Uploader) uploadWithRetry(key, localPath string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := u.client.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(u.backoff(attempt))
		}
	}
	return lastErr
}

func (u *Uploader) objectKey(localPath string) (string, error) {
	absBase, err := filepath.Abs(u.baseDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside %s", absLocal, absBase)
	}
	if u.prefix != "" {
		return path.Join(u.prefix, rel), nil
	}
	return rel, nil
}

func (u *Uploader) printf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}
