// Package s3 provides an S3 adapter for uploading ledger backups to AWS S3.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// s3WriterAPI defines the subset of S3 operations needed by the Writer.
type s3WriterAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Compile-time check that Writer implements outbound.BackupWriter
var _ outbound.BackupWriter = (*Writer)(nil)

// Writer uploads ledger files into a single bucket under an optional key prefix.
type Writer struct {
	client s3WriterAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewWriter creates a new S3 Writer with the given AWS config.
func NewWriter(cfg aws.Config, bucket, prefix string, logger *slog.Logger) (*Writer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3-writer"),
	}, nil
}

// Upload writes body to the bucket at prefix/key, overwriting any previous
// backup at the same key.
func (w *Writer) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	fullKey := key
	if w.prefix != "" {
		fullKey = path.Join(w.prefix, key)
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to write to S3: %w", err)
	}

	w.logger.Debug("uploaded backup", "bucket", w.bucket, "key", fullKey)
	return nil
}
