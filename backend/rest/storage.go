package rest

import (
	"context"
	"io"
	"net/url"
	"strings"

	xhttp "github.com/kochabx/rentoso/core/net/http"
)

// Storage 对象存储接口
type Storage struct {
	c *Client
}

// Upload 同名对象会被覆盖
func (s *Storage) Upload(ctx context.Context, bucket, path string, r io.Reader, _ int64, contentType string) error {
	_, err := s.c.http.Post(ctx, s.object(bucket, path), r,
		s.c.bearer(),
		xhttp.Header("Content-Type", contentType),
		xhttp.Header("x-upsert", "true"))
	return mapError(err, "upload "+bucket+"/"+path)
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.c.endpoint("/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path))
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := s.c.http.Delete(ctx, s.c.endpoint("/storage/v1/object/"+url.PathEscape(bucket)),
		map[string]any{"prefixes": paths}, s.c.bearer())
	return mapError(err, "remove "+bucket)
}

func (s *Storage) object(bucket, path string) string {
	return s.c.endpoint("/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path))
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
