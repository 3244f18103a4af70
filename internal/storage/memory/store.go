// Package memory is an in-process ObjectStorage used by the CLI and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"aforo/internal/domain"
	"aforo/internal/port"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

var _ port.ObjectStorage = (*Store)(nil)

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *Store) Upload(_ context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, input.Body); err != nil {
		return nil, fmt.Errorf("memory upload: %w", err)
	}
	s.mu.Lock()
	s.objects[objectKey(input.Bucket, input.Key)] = buf.Bytes()
	s.mu.Unlock()
	return &port.UploadOutput{Location: "memory://" + objectKey(input.Bucket, input.Key)}, nil
}

func (s *Store) Download(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[objectKey(bucket, key)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory download %s: %w", key, domain.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	delete(s.objects, objectKey(bucket, key))
	s.mu.Unlock()
	return nil
}

func (s *Store) GetPresignedURL(_ context.Context, bucket, key string, _ int64) (string, error) {
	return "memory://" + objectKey(bucket, key), nil
}
