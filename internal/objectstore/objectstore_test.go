package objectstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	puts       []string
	publics    []string
	putErr     error
	publicErr  error
	deleted    []string
	urlBase    string
	lastType   string
	lastLength int
}

func (b *recordingBackend) Put(_ context.Context, key, contentType string, data []byte) error {
	b.puts = append(b.puts, key)
	b.lastType = contentType
	b.lastLength = len(data)
	return b.putErr
}

func (b *recordingBackend) MakePublic(_ context.Context, key string) error {
	b.publics = append(b.publics, key)
	return b.publicErr
}

func (b *recordingBackend) PublicURL(key string) string {
	return joinURL(b.urlBase, key)
}

func (b *recordingBackend) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return nil
}

func fixedClock() Option {
	return WithClock(func() time.Time { return time.UnixMilli(1700000000123) })
}

func TestStoreDerivesTimestampedKey(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://storage.googleapis.com/trivia"}
	client := New(backend, "", fixedClock())

	obj, err := client.Store(context.Background(), []byte("png"), "Historia.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700000000123_Historia.png", obj.Key)
	assert.Equal(t, "https://storage.googleapis.com/trivia/uploads/1700000000123_Historia.png", obj.URL)
	assert.Equal(t, []string{obj.Key}, backend.puts)
	assert.Equal(t, []string{obj.Key}, backend.publics)
	assert.Equal(t, "image/png", backend.lastType)
	assert.Equal(t, 3, backend.lastLength)
}

func TestStoreStripsDirectoriesFromName(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://h/b"}
	client := New(backend, "/media/", fixedClock())

	obj := client.Prepare(`..\..\etc/passwd`)
	assert.Equal(t, "media/1700000000123_passwd", obj.Key)

	obj = client.Prepare("")
	assert.Equal(t, "media/1700000000123_file", obj.Key)
}

func TestPrepareNeverRepeatsAKey(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://h/b"}
	client := New(backend, "uploads", fixedClock())

	first := client.Prepare("blob.png")
	second := client.Prepare("blob.png")
	other := client.Prepare("other.png")
	third := client.Prepare("blob.png")

	assert.Equal(t, "uploads/1700000000123_blob.png", first.Key)
	assert.Equal(t, "uploads/1700000000124_blob.png", second.Key)
	assert.Equal(t, "uploads/1700000000123_other.png", other.Key)
	assert.Equal(t, "uploads/1700000000125_blob.png", third.Key)
}

func TestPrepareIsUniqueAcrossGoroutines(t *testing.T) {
	client := New(&recordingBackend{urlBase: "https://h/b"}, "uploads")

	const n = 64
	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys[i] = client.Prepare("same.png").Key
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestPublicURLEscapesSegments(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://h/b"}
	client := New(backend, "uploads", fixedClock())

	obj := client.Prepare("foto área 1.png")
	assert.Equal(t, "https://h/b/uploads/1700000000123_foto%20%C3%A1rea%201.png", obj.URL)
}

func TestUploadFailureSkipsVisibility(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://h/b", putErr: errors.New("connection reset")}
	client := New(backend, "", fixedClock())

	_, err := client.Store(context.Background(), []byte("x"), "a.png", "image/png")
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.NotErrorIs(t, err, ErrVisibilityChangeFailed)
	assert.Empty(t, backend.publics)
}

func TestVisibilityFailureIsDistinct(t *testing.T) {
	backend := &recordingBackend{urlBase: "https://h/b", publicErr: errors.New("acl denied")}
	client := New(backend, "", fixedClock())

	_, err := client.Store(context.Background(), []byte("x"), "a.png", "")
	require.ErrorIs(t, err, ErrVisibilityChangeFailed)
	assert.NotErrorIs(t, err, ErrUploadFailed)
	assert.Len(t, backend.puts, 1)
	assert.Equal(t, "application/octet-stream", backend.lastType)
}
