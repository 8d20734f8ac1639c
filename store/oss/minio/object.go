package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/kochabx/rentoso/errors"
)

// Upload 覆盖写入对象，size 未知时传 -1
func (c *Client) Upload(ctx context.Context, bucket, path string, r io.Reader, size int64, ct string) error {
	if err := validate(bucket, path); err != nil {
		return err
	}
	info, err := c.core.Client.PutObject(ctx, bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType(path, ct),
	})
	if err != nil {
		return &ObjectError{Bucket: bucket, Object: path, Operation: "put", Err: err}
	}
	c.logger.Debug().Str("bucket", bucket).Str("object", path).Int64("size", info.Size).Msg("object uploaded")
	return nil
}

// Remove 删除对象，对象不存在不算错误
func (c *Client) Remove(ctx context.Context, bucket string, paths ...string) error {
	if bucket == "" {
		return ErrEmptyBucketName
	}
	var errs []error
	for _, p := range paths {
		if err := c.core.Client.RemoveObject(ctx, bucket, p, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, &ObjectError{Bucket: bucket, Object: p, Operation: "remove", Err: err})
		}
	}
	return errors.Join(errs...)
}

// Exists 检查对象是否存在
func (c *Client) Exists(ctx context.Context, bucket, path string) (bool, error) {
	if err := validate(bucket, path); err != nil {
		return false, err
	}
	_, err := c.core.StatObject(ctx, bucket, path, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, &ObjectError{Bucket: bucket, Object: path, Operation: "stat", Err: err}
	}
	return true, nil
}

// PresignUpload 浏览器直传图片使用的预签名地址，expires 为 0 时使用配置值
func (c *Client) PresignUpload(ctx context.Context, bucket, path string, expires time.Duration) (*url.URL, error) {
	if err := validate(bucket, path); err != nil {
		return nil, err
	}
	if expires == 0 {
		expires = c.config.PresignExpiry
	}
	u, err := c.core.PresignedPutObject(ctx, bucket, path, expires)
	if err != nil {
		return nil, &ObjectError{Bucket: bucket, Object: path, Operation: "presign_put", Err: err}
	}
	return u, nil
}

func validate(bucket, path string) error {
	if bucket == "" {
		return ErrEmptyBucketName
	}
	if path == "" {
		return ErrEmptyObjectName
	}
	return nil
}
