package mock

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// Storage 内存对象存储
type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

func newStorage(baseURL string) *Storage {
	return &Storage{objects: make(map[string]object), baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Storage) Upload(ctx context.Context, bucket, path string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("mock storage: size mismatch, want %d got %d", size, len(data))
	}
	s.mu.Lock()
	s.objects[bucket+"/"+path] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(bucket), path)
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, bucket+"/"+p)
	}
	return nil
}

// Object 读取已上传的内容
func (s *Storage) Object(bucket, path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[bucket+"/"+path]
	return o.data, o.contentType, ok
}
