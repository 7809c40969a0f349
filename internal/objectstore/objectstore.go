package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUploadFailed indicates the bytes could not be written to the store.
	ErrUploadFailed = errors.New("object upload failed")

	// ErrVisibilityChangeFailed indicates the object was written but could not
	// be made publicly readable. The object may exist yet be unreachable.
	ErrVisibilityChangeFailed = errors.New("object visibility change failed")
)

// Backend is a concrete object storage provider.
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	MakePublic(ctx context.Context, key string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// Object identifies one stored asset.
type Object struct {
	Key string
	URL string
}

// Client derives storage keys and drives a Backend through the
// write-then-publish sequence. It performs exactly one attempt per call.
type Client struct {
	backend Backend
	prefix  string
	now     func() time.Time

	mu     sync.Mutex
	issued map[string]int64 // key -> millis it was issued for
}

// Option customises a Client.
type Option func(*Client)

// WithClock overrides the time source used for key generation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps backend. Keys are generated under prefix ("uploads" when empty).
func New(backend Backend, prefix string, opts ...Option) *Client {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "uploads"
	}
	c := &Client{backend: backend, prefix: prefix, now: time.Now, issued: make(map[string]int64)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prepare computes the key and public URL an upload of name would receive.
// Keys are unique for the lifetime of the Client: when the same name was
// already issued for the current millisecond, the millisecond is advanced
// until the key is free.
func (c *Client) Prepare(name string) Object {
	base := sanitizeName(name)

	c.mu.Lock()
	now := c.now().UnixMilli()
	ms := now
	key := c.key(ms, base)
	for {
		if _, taken := c.issued[key]; !taken {
			break
		}
		ms++
		key = c.key(ms, base)
	}
	c.issued[key] = ms
	c.forget(now)
	c.mu.Unlock()

	return Object{Key: key, URL: c.backend.PublicURL(key)}
}

func (c *Client) key(ms int64, base string) string {
	return fmt.Sprintf("%s/%d_%s", c.prefix, ms, base)
}

// forget drops keys issued for milliseconds that have already passed; the
// clock can no longer produce them.
func (c *Client) forget(now int64) {
	if len(c.issued) < 256 {
		return
	}
	for k, ms := range c.issued {
		if ms < now {
			delete(c.issued, k)
		}
	}
}

// Upload writes data under obj.Key and marks it publicly readable.
func (c *Client) Upload(ctx context.Context, obj Object, contentType string, data []byte) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := c.backend.Put(ctx, obj.Key, contentType, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUploadFailed, obj.Key, err)
	}
	if err := c.backend.MakePublic(ctx, obj.Key); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVisibilityChangeFailed, obj.Key, err)
	}
	return nil
}

// Store uploads data under a fresh key derived from name and returns the
// resulting object.
func (c *Client) Store(ctx context.Context, data []byte, name, contentType string) (Object, error) {
	obj := c.Prepare(name)
	if err := c.Upload(ctx, obj, contentType, data); err != nil {
		return Object{}, err
	}
	return obj, nil
}

// Delete removes the object stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// sanitizeName keeps only the final path element so client-provided names
// cannot escape the key prefix.
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "file"
	}
	return base
}

// joinURL appends key to base, escaping each key segment.
func joinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
