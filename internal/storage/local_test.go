package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fedutinova/speechcoach/internal/common"
	appconfig "github.com/fedutinova/speechcoach/internal/config"
)

func TestLocalStorage_UploadGetDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}
	ctx := context.Background()

	res, err := s.UploadFile(ctx, "my talk.wav", bytes.NewReader([]byte("RIFF....")), "audio/wav")
	if err != nil {
		t.Fatalf("UploadFile error: %v", err)
	}
	if !strings.HasPrefix(res.Key, "audio/") || !strings.HasSuffix(res.Key, ".wav") {
		t.Fatalf("unexpected key %q", res.Key)
	}
	if strings.Contains(res.Key, " ") {
		t.Fatalf("expected spaces to be replaced in key %q", res.Key)
	}

	rc, contentType, err := s.GetFile(ctx, res.Key)
	if err != nil {
		t.Fatalf("GetFile error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "RIFF...." {
		t.Fatalf("unexpected content %q", data)
	}
	if contentType != "audio/wav" {
		t.Fatalf("expected audio/wav, got %s", contentType)
	}

	if err := s.DeleteFile(ctx, res.Key); err != nil {
		t.Fatalf("DeleteFile error: %v", err)
	}
	if _, _, err := s.GetFile(ctx, res.Key); !common.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStorage error: %v", err)
	}

	for _, key := range []string{"../secret.wav", "/etc/passwd", "."} {
		if _, _, err := s.GetFile(context.Background(), key); !common.IsValidation(err) {
			t.Errorf("expected validation error for key %q, got %v", key, err)
		}
	}
}

func TestGetStorageType(t *testing.T) {
	tests := []struct {
		cfg  appconfig.Config
		want string
	}{
		{appconfig.Config{StorageMode: "local"}, "Local Filesystem"},
		{appconfig.Config{StorageMode: "s3", S3Endpoint: "http://localhost:4566"}, "LocalStack S3"},
		{appconfig.Config{StorageMode: "s3"}, "AWS S3"},
		{appconfig.Config{}, "Local Filesystem (default)"},
	}
	for _, tt := range tests {
		if got := GetStorageType(tt.cfg); got != tt.want {
			t.Errorf("GetStorageType(%q) = %q, want %q", tt.cfg.StorageMode, got, tt.want)
		}
	}
}
