package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/storage"
	"github.com/google/uuid"
)

// Files is an in-memory storage.Storage.
type Files struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

var _ storage.Storage = (*Files)(nil)

func NewFiles() *Files {
	return &Files{data: map[string][]byte{}}
}

// Put stores data under key.
func (f *Files) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
}

// Deleted returns the keys removed so far.
func (f *Files) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *Files) UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*storage.UploadResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("audio/%s/%s", uuid.NewString(), filename)
	f.Put(key, data)
	return &storage.UploadResult{Key: key, URL: "mem://" + key}, nil
}

func (f *Files) GetFile(ctx context.Context, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", common.ErrAudioNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), "audio/wav", nil
}

func (f *Files) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return common.WrapNotFound(key, fmt.Errorf("no such key"))
	}
	delete(f.data, key)
	f.deleted = append(f.deleted, key)
	return nil
}
