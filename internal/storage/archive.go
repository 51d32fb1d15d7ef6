package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/testforge/uidetect/internal/config"
)

// objectStore is the subset of *minio.Client the archive uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ScreenshotArchive stores screenshots of detections that left fields unresolved so
// selector and prompt gaps can be reviewed later.
type ScreenshotArchive struct {
	client objectStore
	bucket string
	region string
	prefix string
	now    func() time.Time
}

// NewScreenshotArchive creates a MinIO-backed archive.
func NewScreenshotArchive(cfg config.StorageConfig) (*ScreenshotArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return newArchive(client, cfg), nil
}

func newArchive(client objectStore, cfg config.StorageConfig) *ScreenshotArchive {
	return &ScreenshotArchive{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.ScreenshotPath, "/"),
		now:    time.Now,
	}
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *ScreenshotArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("creating bucket: %w", err)
	}
	return nil
}

// ArchiveScreenshot uploads png under <prefix>/<context>/<date>/<request id>.png and
// returns its s3:// URI. The unresolved field names travel as object metadata.
func (a *ScreenshotArchive) ArchiveScreenshot(ctx context.Context, requestID, detectionContext string, png []byte, missing []string) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("empty screenshot")
	}

	key := a.Key(requestID, detectionContext)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType: "image/png",
		UserMetadata: map[string]string{
			"detection-context": detectionContext,
			"missing-fields":    strings.Join(missing, ","),
		},
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Key returns the object key for a request.
func (a *ScreenshotArchive) Key(requestID, detectionContext string) string {
	if detectionContext == "" {
		detectionContext = "generic"
	}
	return path.Join(a.prefix, detectionContext, a.now().UTC().Format("2006/01/02"), requestID+".png")
}
