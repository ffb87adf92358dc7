package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSOptions struct {
	// Client, when set, is used as is.
	Client        *gcs.Client
	ClientOptions []option.ClientOption
}

type GCSAdapter struct {
	client *gcs.Client
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCSAdapter, error) {
	if opts.Client != nil {
		return &GCSAdapter{client: opts.Client}, nil
	}

	client, err := gcs.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	return &GCSAdapter{client: client}, nil
}

func (g *GCSAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata

	if _, err := io.Copy(w, r); err != nil {
		return ObjectInfo{}, errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}

	if attrs := w.Attrs(); attrs != nil {
		return gcsInfo(attrs), nil
	}
	return ObjectInfo{Bucket: bucket, Key: key, Size: opts.Size, ContentType: opts.ContentType}, nil
}

func (g *GCSAdapter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	rd, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	return rd, ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        rd.Attrs.Size,
		ContentType: rd.Attrs.ContentType,
		UpdatedAt:   rd.Attrs.LastModified,
	}, nil
}

func (g *GCSAdapter) Close() error {
	return g.client.Close()
}

func gcsInfo(a *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Bucket:      a.Bucket,
		Key:         a.Name,
		Size:        a.Size,
		ETag:        a.Etag,
		ContentType: a.ContentType,
		UpdatedAt:   a.Updated,
	}
}
