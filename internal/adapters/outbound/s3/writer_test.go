package s3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockS3API struct {
	putObjectFunc func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, params, optFns...)
	}
	return &s3.PutObjectOutput{}, nil
}

func TestWriter_UploadJoinsPrefix(t *testing.T) {
	var gotKey, gotBucket, gotBody string

	writer := &Writer{
		client: &mockS3API{
			putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				gotBucket = *params.Bucket
				gotKey = *params.Key
				data, _ := io.ReadAll(params.Body)
				gotBody = string(data)
				return &s3.PutObjectOutput{}, nil
			},
		},
		bucket: "revenue-backups",
		prefix: "ledgers",
		logger: testLogger(),
	}

	err := writer.Upload(context.Background(), "staking_fees/telos_staking_fees_raw.csv",
		strings.NewReader("100,2024-01-01 12:00:00,10.5\n"), "text/csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBucket != "revenue-backups" {
		t.Errorf("bucket = %q", gotBucket)
	}
	if gotKey != "ledgers/staking_fees/telos_staking_fees_raw.csv" {
		t.Errorf("key = %q", gotKey)
	}
	if gotBody != "100,2024-01-01 12:00:00,10.5\n" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestWriter_UploadWithoutPrefix(t *testing.T) {
	var gotKey string

	writer := &Writer{
		client: &mockS3API{
			putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				gotKey = *params.Key
				return &s3.PutObjectOutput{}, nil
			},
		},
		bucket: "revenue-backups",
		logger: testLogger(),
	}

	if err := writer.Upload(context.Background(), "prices/usdm.csv", strings.NewReader("x"), "text/csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "prices/usdm.csv" {
		t.Errorf("key = %q", gotKey)
	}
}

func TestWriter_UploadWrapsError(t *testing.T) {
	writer := &Writer{
		client: &mockS3API{
			putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				return nil, errors.New("access denied")
			},
		},
		bucket: "revenue-backups",
		logger: testLogger(),
	}

	err := writer.Upload(context.Background(), "key.csv", strings.NewReader("x"), "text/csv")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error does not wrap cause: %v", err)
	}
}

func TestNewWriter_RequiresBucket(t *testing.T) {
	if _, err := NewWriter(aws.Config{}, "", "", nil); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
