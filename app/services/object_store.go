package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectStore holds raw listing bodies too large to keep inline in the
// database. Writes happen before the referencing row commits, so a crash can
// leave an orphan object but never a dangling reference.
type ObjectStore interface {
	// PutBytes stores body under key and returns an opaque reference that
	// GetBytes accepts.
	PutBytes(ctx context.Context, key string, body []byte) (string, error)
	GetBytes(ctx context.Context, ref string) ([]byte, error)
}

// GCSObjectStore implements ObjectStore on a Google Cloud Storage bucket
type GCSObjectStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSObjectStore creates a GCS-backed object store. Credentials come from
// the service account JSON file, or application default credentials when the
// path is empty.
func NewGCSObjectStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSObjectStore, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSObjectStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// PutBytes uploads body and returns a gs:// reference
func (s *GCSObjectStore) PutBytes(ctx context.Context, key string, body []byte) (string, error) {
	objectName := key
	if s.prefix != "" {
		objectName = s.prefix + "/" + key
	}

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// GetBytes downloads the object a PutBytes reference points at
func (s *GCSObjectStore) GetBytes(ctx context.Context, ref string) ([]byte, error) {
	bucket, objectName, err := parseGSRef(ref)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", ref, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	return body, nil
}

// Close releases the underlying client
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

func parseGSRef(ref string) (bucket, objectName string, err error) {
	trimmed, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid object reference %q", ref)
	}
	bucket, objectName, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || objectName == "" {
		return "", "", fmt.Errorf("invalid object reference %q", ref)
	}
	return bucket, objectName, nil
}

// MockObjectStore implements ObjectStore in memory for testing
type MockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// ShouldFail makes every call return an error
	ShouldFail bool
}

// NewMockObjectStore creates an in-memory object store
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

// PutBytes stores body in memory under a mock:// reference
func (m *MockObjectStore) PutBytes(ctx context.Context, key string, body []byte) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("mock object store failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "mock://" + key
	cp := make([]byte, len(body))
	copy(cp, body)
	m.objects[ref] = cp
	return ref, nil
}

// GetBytes retrieves a stored body
func (m *MockObjectStore) GetBytes(ctx context.Context, ref string) ([]byte, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock object store failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s not found", ref)
	}
	return body, nil
}

// Len returns the number of stored objects
func (m *MockObjectStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
