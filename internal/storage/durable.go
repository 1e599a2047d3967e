package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// DurableStore is the permanent home of confirmed pickup photos. The staging
// store promotes into it and the image endpoint reads from it.
type DurableStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// MinioStore keeps durable photos in a MinIO bucket.
type MinioStore struct {
	Client     *minio.Client
	BucketName string
}

// NewMinioStore creates a DurableStore backed by the given client and bucket.
func NewMinioStore(client *minio.Client, bucketName string) *MinioStore {
	return &MinioStore{Client: client, BucketName: bucketName}
}

// Put uploads data under key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	contentType := http.DetectContentType(data)
	_, err := s.Client.PutObject(ctx, s.BucketName, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}
	return nil
}

// Get returns the stored bytes for key, or ErrNotFound.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.Client.GetObject(ctx, s.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve file")
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		// MinIO reports missing keys on first read, not on GetObject.
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read object data")
	}
	return data, nil
}

// Remove deletes the object for key.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.Client.RemoveObject(ctx, s.BucketName, key, minio.RemoveObjectOptions{})
}
