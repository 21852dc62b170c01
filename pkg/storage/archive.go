package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/pkg/queue"
)

// FolderDeadLetters is the S3 prefix for archived dead-letter tasks.
const FolderDeadLetters = "dead-letters"

// ErrObjectNotFound is returned by Download for a key the bucket does not hold.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes whole objects. *S3 implements it.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) (string, error)
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// DeadLetterArchive writes each dead-lettered task to a bucket as JSON and reads it back.
type DeadLetterArchive struct {
	objects  ObjectStore
	bucket   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeadLetterArchive creates an archive writing to bucket.
func NewDeadLetterArchive(objects ObjectStore, bucket string, logger *zap.Logger) *DeadLetterArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterArchive{objects: objects, bucket: bucket, logger: logger, now: time.Now}
}

// DeadLetterKey returns dead-letters/{service}/{yyyy}/{mm}/{dd}/{task_id}.json.
func DeadLetterKey(service, taskID string, at time.Time) string {
	at = at.UTC()
	return path.Join(FolderDeadLetters, service, at.Format("2006"), at.Format("01"), at.Format("02"), taskID+".json")
}

// Archive uploads task. It satisfies worker.Archiver.
func (a *DeadLetterArchive) Archive(ctx context.Context, task *queue.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	key := DeadLetterKey(task.Service, task.ID, a.now())
	url, err := a.objects.Upload(ctx, a.bucket, key, "application/json", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("archive dead letter: %w", err)
	}
	a.logger.Info("dead letter archived", zap.String("task_id", task.ID), zap.String("url", url))
	return nil
}

// Fetch reads back the task archived under key.
func (a *DeadLetterArchive) Fetch(ctx context.Context, key string) (*queue.Task, error) {
	body, err := a.objects.Download(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var task queue.Task
	if err := json.NewDecoder(body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode archived task %s: %w", key, err)
	}
	return &task, nil
}
