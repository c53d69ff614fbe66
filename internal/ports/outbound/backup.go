package outbound

import (
	"context"
	"io"
)

// BackupWriter uploads ledger files to long-term object storage.
type BackupWriter interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}
