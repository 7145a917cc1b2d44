package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinioStore pushes artifacts to an object-storage bucket. minio.Object
// implements io.ReadSeekCloser, so ranged streaming works the same as with
// local files.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

func (s *MinioStore) Save(ctx context.Context, key, localPath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{})
	return err
}

func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadSeekCloser, Info, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, err
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, Info{}, err
	}
	return obj, Info{Size: stat.Size, ModTime: stat.LastModified}, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
