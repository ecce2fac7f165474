package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader copies a finished report file somewhere durable.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Uploader uses the default AWS credential chain.
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &S3Uploader{
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Key is the object key used for a local file.
func (u *S3Uploader) Key(localPath string) string {
	return path.Join(u.prefix, filepath.Base(localPath))
}

// Upload returns the s3:// URI of the stored object.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := u.Key(localPath)
	if _, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", localPath, u.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
