package publisher

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryObjectStorage is an in-process ObjectStorage. It backs dry runs and tests and lists keys in
// lexical order with the same delimiter grouping the cloud services apply. Data is copied on the
// way in and out.
type MemoryObjectStorage struct {
	repeater

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string][]byte)}
}

func (s *MemoryObjectStorage) UploadFromPath(ctx context.Context, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return s.UploadBytes(ctx, key, data)
}

func (s *MemoryObjectStorage) UploadBytes(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = cp
	return nil
}

func (s *MemoryObjectStorage) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Keys returns every stored key in lexical order.
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryObjectStorage) keysWithPrefix(prefix string) []string {
	var keys []string
	for _, key := range s.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *MemoryObjectStorage) ListByDelimiter(ctx context.Context, prefix, delimiter string, fn func(Entry) error) error {
	seen := make(map[string]bool)
	for _, key := range s.keysWithPrefix(prefix) {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := Entry{Name: key, Kind: BlobEntry}
		if delimiter != "" {
			if idx := strings.Index(key[len(prefix):], delimiter); idx >= 0 {
				entry = Entry{Name: key[:len(prefix)+idx+len(delimiter)], Kind: PrefixEntry}
			}
		}
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryObjectStorage) ListFlat(ctx context.Context, prefix string, fn func(Entry) error) error {
	return s.ListByDelimiter(ctx, prefix, "", fn)
}

func (s *MemoryObjectStorage) Delete(ctx context.Context, key string, opts DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	s.mu.Unlock()
	if !ok {
		s.emit(MissingObjectEvent, 0, key, nil)
	}
	return nil
}

var _ ObjectStorage = (*MemoryObjectStorage)(nil)
