// Package bulkload resolves a bulk_load path (spec §6) to a byte stream:
// a plain filesystem path, or an s3://bucket/key path fetched from S3.
// This is the one place aws-sdk-go-v2 appears in the module — grounded on
// the teacher's own client construction pattern (config.LoadDefaultConfig
// + s3.NewFromConfig) for pulling objects down before use.
package bulkload

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

// OpenReader opens path for reading. Paths of the form s3://bucket/key are
// streamed from S3; everything else is treated as a local filesystem path.
func OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, s3Scheme) {
		return os.Open(path)
	}
	return openS3(ctx, path)
}

func openS3(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitS3Path(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func splitS3Path(path string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(path, s3Scheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 path %q, want s3://bucket/key", path)
	}
	return parts[0], parts[1], nil
}
