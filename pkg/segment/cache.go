package segment

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/menta2k/blur-studio/internal/utils"
)

// Cache stores confidence buffers by image fingerprint
type Cache interface {
	Get(ctx context.Context, key string) (*Confidence, bool, error)
	Set(ctx context.Context, key string, c *Confidence) error
}

// Fingerprint returns a content key for img: its size and an MD5 of its
// NRGBA pixels.
func Fingerprint(img image.Image) string {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return fmt.Sprintf("%dx%d:%s", b.Dx(), b.Dy(), utils.BytesMD5(nrgba.Pix))
}

// MemoryCache is an in-process Cache holding at most MaxEntries buffers.
// When full, an arbitrary entry is evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*Confidence
	maxEntries int
}

// NewMemoryCache creates a MemoryCache; maxEntries <= 0 means 16.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 16
	}
	return &MemoryCache{
		entries:    make(map[string]*Confidence),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached buffer for key
func (m *MemoryCache) Get(_ context.Context, key string) (*Confidence, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return c.clone(), true, nil
}

// Set stores a copy of c under key
func (m *MemoryCache) Set(_ context.Context, key string, c *Confidence) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		for k := range m.entries {
			delete(m.entries, k)
			break
		}
	}
	m.entries[key] = c.clone()
	return nil
}

// Len returns the number of cached buffers.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (c *Confidence) clone() *Confidence {
	out := &Confidence{Width: c.Width, Height: c.Height, Values: make([]float32, len(c.Values))}
	copy(out.Values, c.Values)
	return out
}

// RedisOptions configures a RedisCache
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisCache shares confidence buffers between processes through redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects a RedisCache. The connection is lazy; use Ping to
// check it.
func NewRedisCache(opts RedisOptions) *RedisCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "segment:"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl:    opts.TTL,
		prefix: prefix,
	}
}

// Ping checks the redis connection
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get loads the buffer for key. A miss returns ok == false and no error.
func (r *RedisCache) Get(ctx context.Context, key string) (*Confidence, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	c, err := DecodeConfidence(data)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Set stores c under key with the configured TTL
func (r *RedisCache) Set(ctx context.Context, key string, c *Confidence) error {
	data, err := EncodeConfidence(c)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

// Close closes the redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// EncodeConfidence serializes c as little-endian width, height and float32 values.
func EncodeConfidence(c *Confidence) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 8+4*len(c.Values))
	binary.LittleEndian.PutUint32(buf[0:], uint32(c.Width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(c.Height))
	for i, v := range c.Values {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(v))
	}
	return buf, nil
}

// DecodeConfidence parses the EncodeConfidence format.
func DecodeConfidence(data []byte) (*Confidence, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: short header", ErrInvalidBuffer)
	}
	w := int(binary.LittleEndian.Uint32(data[0:]))
	h := int(binary.LittleEndian.Uint32(data[4:]))
	if w <= 0 || h <= 0 || len(data)-8 != 4*w*h {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidBuffer, len(data), w, h)
	}
	c := NewConfidence(w, h)
	for i := range c.Values {
		c.Values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+4*i:]))
	}
	return c, nil
}

type cachedProvider struct {
	inner  Provider
	cache  Cache
	logger *zap.Logger
}

// WithCache wraps p so results are looked up in and stored to c. Cache
// errors are logged and never fail the segmentation.
func WithCache(p Provider, c Cache, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedProvider{inner: p, cache: c, logger: logger}
}

func (p *cachedProvider) Segment(ctx context.Context, img image.Image) (*Confidence, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	key := Fingerprint(img)

	if c, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn("segmentation cache lookup failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		p.logger.Debug("segmentation cache hit", zap.String("key", key))
		return c, nil
	}

	c, err := p.inner.Segment(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, c); err != nil {
		p.logger.Warn("segmentation cache store failed", zap.String("key", key), zap.Error(err))
	}
	return c, nil
}
