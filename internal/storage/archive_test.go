package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/config"
)

type putCall struct {
	bucket, key string
	body        []byte
	opts        minio.PutObjectOptions
}

type fakeStore struct {
	exists bool
	made   []string
	puts   []putCall
	putErr error
}

func (f *fakeStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.made = append(f.made, bucketName+"@"+opts.Region)
	return nil
}

func (f *fakeStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.puts = append(f.puts, putCall{bucket: bucketName, key: objectName, body: body, opts: opts})
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func testArchive(store *fakeStore) *ScreenshotArchive {
	a := newArchive(store, config.StorageConfig{Bucket: "uidetect", Region: "us-east-1", ScreenshotPath: "/unresolved/"})
	a.now = func() time.Time { return time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC) }
	return a
}

func TestArchiveScreenshot(t *testing.T) {
	store := &fakeStore{}
	a := testArchive(store)

	uri, err := a.ArchiveScreenshot(context.Background(), "req-1", "login", []byte("png"), []string{"submit", "password"})
	require.NoError(t, err)

	assert.Equal(t, "s3://uidetect/unresolved/login/2026/03/09/req-1.png", uri)
	require.Len(t, store.puts, 1)
	put := store.puts[0]
	assert.Equal(t, "uidetect", put.bucket)
	assert.Equal(t, []byte("png"), put.body)
	assert.Equal(t, "image/png", put.opts.ContentType)
	assert.Equal(t, "submit,password", put.opts.UserMetadata["missing-fields"])
	assert.Equal(t, "login", put.opts.UserMetadata["detection-context"])
}

func TestArchiveScreenshot_Errors(t *testing.T) {
	store := &fakeStore{putErr: errors.New("access denied")}
	a := testArchive(store)

	_, err := a.ArchiveScreenshot(context.Background(), "req-1", "login", []byte("png"), nil)
	assert.ErrorContains(t, err, "access denied")

	_, err = a.ArchiveScreenshot(context.Background(), "req-1", "login", nil, nil)
	assert.Error(t, err)
}

func TestKey_DefaultsContext(t *testing.T) {
	a := testArchive(&fakeStore{})
	assert.Equal(t, "unresolved/generic/2026/03/09/abc.png", a.Key("abc", ""))
}

func TestEnsureBucket(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, testArchive(store).EnsureBucket(context.Background()))
	assert.Equal(t, []string{"uidetect@us-east-1"}, store.made)

	existing := &fakeStore{exists: true}
	require.NoError(t, testArchive(existing).EnsureBucket(context.Background()))
	assert.Empty(t, existing.made)
}
