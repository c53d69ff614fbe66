package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

type mockBackupWriter struct {
	uploads map[string]string
	fn      func(key string) error
}

func (m *mockBackupWriter) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.fn != nil {
		if err := m.fn(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.uploads == nil {
		m.uploads = make(map[string]string)
	}
	m.uploads[key] = string(data)
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRun_UploadsCSVsWithRelativeKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "staking_fees", "telos_staking_fees_raw.csv"), "100,2024-01-01 00:00:00,10\n")
	writeFile(t, filepath.Join(dir, "historical_prices", "telos_historical_prices.csv"), "date,price\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a ledger")

	writer := &mockBackupWriter{}
	svc, err := NewService(ServiceConfig{DataDir: dir}, writer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	uploaded, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uploaded != 2 {
		t.Fatalf("uploaded = %d, want 2", uploaded)
	}

	var keys []string
	for k := range writer.uploads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"historical_prices/telos_historical_prices.csv",
		"staking_fees/telos_staking_fees_raw.csv",
	}
	for i, w := range want {
		if keys[i] != w {
			t.Errorf("key %d = %q, want %q", i, keys[i], w)
		}
	}
	if writer.uploads["staking_fees/telos_staking_fees_raw.csv"] != "100,2024-01-01 00:00:00,10\n" {
		t.Errorf("uploaded body mismatch")
	}
}

func TestRun_FailedUploadAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "x\n")
	writeFile(t, filepath.Join(dir, "b.csv"), "y\n")

	wantErr := errors.New("bucket gone")
	writer := &mockBackupWriter{fn: func(key string) error {
		if key == "b.csv" {
			return wantErr
		}
		return nil
	}}
	svc, _ := NewService(ServiceConfig{DataDir: dir}, writer)

	uploaded, err := svc.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
	if uploaded != 1 {
		t.Errorf("uploaded = %d, want 1", uploaded)
	}
}

func TestNewService_Validation(t *testing.T) {
	if _, err := NewService(ServiceConfig{DataDir: "x"}, nil); err == nil {
		t.Error("expected error for nil writer")
	}
	if _, err := NewService(ServiceConfig{}, &mockBackupWriter{}); err == nil {
		t.Error("expected error for empty data dir")
	}
}
