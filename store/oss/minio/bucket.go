package minio

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// 匿名只读策略，物业图片需要公开访问
const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// EnsureBucket 桶不存在时创建并设为公开只读
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return ErrEmptyBucketName
	}
	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return &BucketError{Bucket: bucket, Operation: "check_exists", Err: err}
	}
	if exists {
		return nil
	}
	if err := c.core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return &BucketError{Bucket: bucket, Operation: "create", Err: err}
	}
	if err := c.core.Client.SetBucketPolicy(ctx, bucket, fmt.Sprintf(publicReadPolicy, bucket)); err != nil {
		return &BucketError{Bucket: bucket, Operation: "set_policy", Err: err}
	}
	c.logger.Info().Str("bucket", bucket).Msg("bucket created")
	return nil
}

func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, ErrEmptyBucketName
	}
	exists, err := c.core.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return exists, nil
}
