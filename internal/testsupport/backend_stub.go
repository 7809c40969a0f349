package testsupport

import (
	"context"
	"errors"
	"sync"
)

// ErrBackend is returned by BackendStub when a failure was scheduled.
var ErrBackend = errors.New("injected backend failure")

// BackendStub is an in-memory objectstore.Backend that records every call.
type BackendStub struct {
	mu         sync.Mutex
	baseURL    string
	objects    map[string][]byte
	puts       []string
	deletes    []string
	failPutAt  int
	failPublic bool
}

// NewBackendStub serves objects under https://storage.googleapis.com/{bucket}.
func NewBackendStub(bucket string) *BackendStub {
	return &BackendStub{
		baseURL: "https://storage.googleapis.com/" + bucket,
		objects: make(map[string][]byte),
	}
}

// FailPutOn makes the nth Put (1-based, counted from now) fail.
func (b *BackendStub) FailPutOn(nth int) {
	b.mu.Lock()
	b.failPutAt = len(b.puts) + nth
	b.mu.Unlock()
}

// FailVisibility makes every MakePublic call fail.
func (b *BackendStub) FailVisibility() {
	b.mu.Lock()
	b.failPublic = true
	b.mu.Unlock()
}

func (b *BackendStub) Put(_ context.Context, key, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts = append(b.puts, key)
	if b.failPutAt > 0 && len(b.puts) == b.failPutAt {
		return ErrBackend
	}
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *BackendStub) MakePublic(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPublic {
		return ErrBackend
	}
	if _, ok := b.objects[key]; !ok {
		return errors.New("object not found")
	}
	return nil
}

func (b *BackendStub) PublicURL(key string) string {
	return b.baseURL + "/" + key
}

func (b *BackendStub) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, key)
	delete(b.objects, key)
	return nil
}

// PutCount returns how many uploads were attempted.
func (b *BackendStub) PutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.puts)
}

// Puts returns attempted keys in call order.
func (b *BackendStub) Puts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.puts...)
}

// Deletes returns deleted keys in call order.
func (b *BackendStub) Deletes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletes...)
}

// Has reports whether key is stored.
func (b *BackendStub) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// Object returns a copy of the bytes stored under key.
func (b *BackendStub) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
