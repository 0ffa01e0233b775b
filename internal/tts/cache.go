package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/voicechat/internal/logger"
)

// AudioCache is a two-tier cache (memory, then disk) of synthesized WAV
// bytes keyed by sha256(voice + ":" + text). Changing voice therefore
// misses instead of replaying the old voice. The disk tier is always read
// when a directory is set and only written when diskWrite is true.
type AudioCache struct {
	mu        sync.RWMutex
	entries   map[string][]byte
	voice     string
	dir       string
	diskWrite bool
	hits      int64
	misses    int64
	log       *logger.Logger
}

// NewAudioCache creates a cache. An empty dir disables the disk tier.
func NewAudioCache(voice, dir string, diskWrite bool, log *logger.Logger) *AudioCache {
	if dir != "" && diskWrite {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: create %s: %v", dir, err)
		}
	}
	return &AudioCache{
		entries:   make(map[string][]byte),
		voice:     voice,
		dir:       dir,
		diskWrite: diskWrite,
		log:       log,
	}
}

// Get returns cached audio for text. Disk hits are promoted to memory.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.entries[key]; ok {
		c.hits++
		return data, true
	}
	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.entries[key] = data
			c.hits++
			c.log.Debug("cache hit (disk): %s", truncate(text, 40))
			return data, true
		}
	}
	c.misses++
	return nil, false
}

// Put stores audio for text in memory and, when enabled, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.dir == "" || !c.diskWrite {
		return
	}
	if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
		c.log.Error("cache: write %s: %v", c.path(key), err)
	}
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}
