// Package cache keeps the last known quotes in memory and mirrors
// them to a versioned blob so a restart can restore the display
// before the first live fetch completes.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradeguard-go/quote"
	"tradeguard-go/risk"
)

// Version bumps whenever the entry layout changes; a mismatch wipes
// the persisted blob instead of trying to migrate it.
const Version = 3

// Blob persists the whole cache as one opaque document.
type Blob interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileBlob stores the blob at a single path, writing via a temp file
// rename so a crash never leaves a half-written cache.
type FileBlob struct {
	Path string
}

func (f FileBlob) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f FileBlob) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

type entry struct {
	Quote quote.Quote `json:"quote"`
	At    int64       `json:"at"` // unix 毫秒
}

type document struct {
	Version int              `json:"version"`
	Indices map[string]entry `json:"indices"`
	Stocks  map[string]entry `json:"stocks"`
}

// Cache 行情快取。TTL 内读到的视为新鲜；过期条目 Get 读不到，
// 但 AllIndices 仍然回传，供界面还原最后一次行情。
type Cache struct {
	mu      sync.RWMutex
	indices map[string]entry
	stocks  map[string]entry
	ttl     time.Duration
	clock   risk.Clock
	blob    Blob
}

func New(ttl time.Duration, clock risk.Clock, blob Blob) *Cache {
	if clock == nil {
		clock = risk.WallClock
	}
	return &Cache{
		indices: make(map[string]entry),
		stocks:  make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
		blob:    blob,
	}
}

// SetTTL 设定档热更新时调整快取存活时间。
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// fresh 严格小于：刚好满 TTL 的条目已经过期。
func (c *Cache) fresh(e entry) bool {
	age := c.clock.Now().UnixMilli() - e.At
	return age < c.ttl.Milliseconds()
}

// GetIndex returns the cached quote for an index key while it is
// still inside the TTL.
func (c *Cache) GetIndex(key string) (quote.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.indices[key]
	if !ok || !c.fresh(e) {
		return quote.Quote{}, false
	}
	return e.Quote, true
}

func (c *Cache) SetIndex(key string, q quote.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indices[key] = entry{Quote: q, At: c.clock.Now().UnixMilli()}
}

// GetStock keys on market+code so "2330" cannot shadow a US ticker.
func (c *Cache) GetStock(market, code string) (quote.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.stocks[market+":"+code]
	if !ok || !c.fresh(e) {
		return quote.Quote{}, false
	}
	return e.Quote, true
}

func (c *Cache) SetStock(market, code string, q quote.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks[market+":"+code] = entry{Quote: q, At: c.clock.Now().UnixMilli()}
}

// AllIndices returns every cached index quote regardless of age.
// Stale data is better than an empty screen on restart.
func (c *Cache) AllIndices() map[string]quote.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]quote.Quote, len(c.indices))
	for k, e := range c.indices {
		out[k] = e.Quote
	}
	return out
}

// LastIndexTime returns the newest index write time, zero when empty.
func (c *Cache) LastIndexTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var newest int64
	for _, e := range c.indices {
		if e.At > newest {
			newest = e.At
		}
	}
	if newest == 0 {
		return time.Time{}
	}
	return time.UnixMilli(newest)
}

// Load restores the persisted blob. A version mismatch or corrupt
// document wipes the store rather than erroring out.
func (c *Cache) Load() error {
	if c.blob == nil {
		return nil
	}
	data, err := c.blob.Read()
	if err != nil {
		return fmt.Errorf("cache read: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.Version != Version {
		c.mu.Lock()
		c.indices = make(map[string]entry)
		c.stocks = make(map[string]entry)
		c.mu.Unlock()
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc.Indices != nil {
		c.indices = doc.Indices
	}
	if doc.Stocks != nil {
		c.stocks = doc.Stocks
	}
	return nil
}

// Save mirrors the current store to the blob.
func (c *Cache) Save() error {
	if c.blob == nil {
		return nil
	}
	c.mu.RLock()
	doc := document{Version: Version, Indices: c.indices, Stocks: c.stocks}
	data, err := json.Marshal(doc)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.blob.Write(data); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
