// Package storage reads and writes objects on S3, GCS, MinIO or a local directory.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage is the subset of object storage the service relies on.
type Storage interface {
	io.Closer

	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
}

type PutOptions struct {
	// Size is the content length, or 0 when unknown.
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	UpdatedAt   time.Time
}

// AppendObject appends data to the object at key, creating it when missing.
// Object stores have no native append, so the object is read and rewritten;
// concurrent appends to one key may lose lines.
func AppendObject(ctx context.Context, s Storage, bucket, key string, data []byte, contentType string) (ObjectInfo, error) {
	var buf bytes.Buffer

	rc, _, err := s.GetObject(ctx, bucket, key)
	switch {
	case errors.Is(err, ErrObjectNotFound):
	case err != nil:
		return ObjectInfo{}, err
	default:
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return ObjectInfo{}, err
		}
	}

	buf.Write(data)

	return s.PutObject(ctx, bucket, key, bytes.NewReader(buf.Bytes()), PutOptions{
		Size:        int64(buf.Len()),
		ContentType: contentType,
	})
}
