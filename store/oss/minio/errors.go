package minio

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBucketName = errors.New("bucket name cannot be empty")
	ErrEmptyObjectName = errors.New("object name cannot be empty")
)

// BucketError 桶操作错误
type BucketError struct {
	Bucket    string
	Operation string
	Err       error
}

func (e *BucketError) Error() string {
	return fmt.Sprintf("bucket operation failed: op=%s, bucket=%s, error=%v", e.Operation, e.Bucket, e.Err)
}

func (e *BucketError) Unwrap() error {
	return e.Err
}

// ObjectError 对象操作错误
type ObjectError struct {
	Bucket    string
	Object    string
	Operation string
	Err       error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object operation failed: op=%s, bucket=%s, object=%s, error=%v",
		e.Operation, e.Bucket, e.Object, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}
