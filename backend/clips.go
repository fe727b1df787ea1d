package backend

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/milk9111/xmod/sound"
	"github.com/patrickmn/go-cache"
)

// clipCache decodes bank clips once and keeps the PCM bytes around.
type clipCache struct {
	load       func(path string) ([]byte, error)
	sampleRate int
	store      *cache.Cache
}

func newClipCache(load func(string) ([]byte, error), sampleRate int) *clipCache {
	return &clipCache{
		load:       load,
		sampleRate: sampleRate,
		store:      cache.New(cache.NoExpiration, 0),
	}
}

// pcm returns 16-bit little-endian stereo samples for path.
func (c *clipCache) pcm(path string) ([]byte, error) {
	if v, ok := c.store.Get(path); ok {
		return v.([]byte), nil
	}

	raw, err := c.load(path)
	if err != nil {
		return nil, fmt.Errorf("backend: load clip %q: %w", path, sound.ErrInvalidDefinition)
	}

	var data []byte
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		stream, err := wav.DecodeWithSampleRate(c.sampleRate, bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("backend: decode wav %q: %v: %w", path, err, sound.ErrInvalidDefinition)
		}
		data, err = io.ReadAll(stream)
		if err != nil {
			return nil, fmt.Errorf("backend: read wav %q: %v: %w", path, err, sound.ErrInvalidDefinition)
		}
	} else {
		// Already-decoded PCM in the context's native format.
		data = raw
	}

	c.store.Set(path, data, cache.NoExpiration)
	return data, nil
}

// forget drops a cached clip so the next instance re-reads it.
func (c *clipCache) forget(path string) {
	c.store.Delete(path)
}

func (c *clipCache) flush() {
	c.store.Flush()
}
