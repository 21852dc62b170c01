package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-platform/integrations/pkg/queue"
)

type fakeObjects struct {
	bucket, key, contentType string
	body                     []byte
	objects                  map[string][]byte
	err                      error
}

func (f *fakeObjects) Upload(_ context.Context, bucket, key, contentType string, body io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bucket, f.key, f.contentType = bucket, key, contentType
	f.body, _ = io.ReadAll(body)
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[bucket+"/"+key] = f.body
	return "https://" + bucket + "/" + key, nil
}

func (f *fakeObjects) Download(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestDeadLetterKey(t *testing.T) {
	at := time.Date(2024, 2, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "dead-letters/user_service/2024/02/05/t1.json", DeadLetterKey("user_service", "t1", at))
}

func TestArchiveUploadsTaskJSON(t *testing.T) {
	up := &fakeObjects{}
	a := NewDeadLetterArchive(up, "dlq-bucket", nil)
	a.now = func() time.Time { return time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC) }

	task := queue.NewTask("payment_service", []byte(`{"event_id":"P1"}`))
	task.Attempt = 3
	task.LastError = "payment_service: forced simulated failure"
	require.NoError(t, a.Archive(context.Background(), task))

	assert.Equal(t, "dlq-bucket", up.bucket)
	assert.Equal(t, "dead-letters/payment_service/2024/02/15/"+task.ID+".json", up.key)
	assert.Equal(t, "application/json", up.contentType)

	var got queue.Task
	require.NoError(t, json.Unmarshal(up.body, &got))
	assert.Equal(t, 3, got.Attempt)
	assert.JSONEq(t, `{"event_id":"P1"}`, string(got.Payload))
}

func TestArchiveWrapsUploadError(t *testing.T) {
	a := NewDeadLetterArchive(&fakeObjects{err: errors.New("access denied")}, "b", nil)
	err := a.Archive(context.Background(), queue.NewTask("user_service", []byte(`{}`)))
	assert.ErrorContains(t, err, "access denied")
}

func TestFetchReadsArchivedTaskBack(t *testing.T) {
	objects := &fakeObjects{}
	a := NewDeadLetterArchive(objects, "dlq-bucket", nil)
	a.now = func() time.Time { return time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC) }

	task := queue.NewTask("message_service", []byte(`{"event_id":"M4"}`))
	task.Attempt = 4
	task.LastError = "schedule retry: connection refused"
	require.NoError(t, a.Archive(context.Background(), task))

	got, err := a.Fetch(context.Background(), DeadLetterKey(task.Service, task.ID, a.now()))
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, 4, got.Attempt)
	assert.Equal(t, task.LastError, got.LastError)
	assert.JSONEq(t, `{"event_id":"M4"}`, string(got.Payload))
}

func TestFetchMissingAndCorruptObjects(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{"b/dead-letters/bad.json": []byte("not json")}}
	a := NewDeadLetterArchive(objects, "b", nil)

	_, err := a.Fetch(context.Background(), "dead-letters/none.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = a.Fetch(context.Background(), "dead-letters/bad.json")
	assert.ErrorContains(t, err, "decode archived task")
}
