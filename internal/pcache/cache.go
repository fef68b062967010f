package pcache

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/go-sif/atlasgen/errors"
	"github.com/moby/locker"
	"github.com/pierrec/lz4/v4"
)

// lru is an LRU RetentionStore which keeps the most recently used partitions uncompressed,
// and older ones lz4-compressed. Partitions which fall off the end of the compressed tier are
// discarded, and must be recomputed by their owner.
type lru struct {
	plocks                 *locker.Locker
	lock                   sync.Mutex
	pmap                   map[string]*list.Element
	compressedPmap         map[string]*list.Element
	recentUncompressedList *list.List // back is oldest, front is newest
	recentCompressedList   *list.List // back is oldest, front is newest
	collections            map[string]map[string]struct{}
	maxUncompressed        int
	maxCompressed          int
}

type cachedPartition struct {
	collection string
	key        string
	value      []byte
}

// LRUConfig configures an LRU RetentionStore
type LRUConfig struct {
	Size               int     // Size is the maximum number of partitions held, across both tiers
	CompressedFraction float32 // CompressedFraction is the share of Size held compressed
}

// NewLRU produces an LRU RetentionStore
func NewLRU(config *LRUConfig) (RetentionStore, error) {
	if config.Size < 1 {
		return nil, fmt.Errorf("LRUConfig.Size %d must be at least 1", config.Size)
	}
	if config.CompressedFraction < 0 || config.CompressedFraction > 1 {
		return nil, fmt.Errorf("LRUConfig.CompressedFraction %f must be between 0 and 1", config.CompressedFraction)
	}
	maxUncompressed := int(float32(config.Size) * (1 - config.CompressedFraction))
	return &lru{
		plocks:                 locker.New(),
		pmap:                   make(map[string]*list.Element),
		compressedPmap:         make(map[string]*list.Element),
		recentUncompressedList: list.New(),
		recentCompressedList:   list.New(),
		collections:            make(map[string]map[string]struct{}),
		maxUncompressed:        maxUncompressed,
		maxCompressed:          config.Size - maxUncompressed,
	}, nil
}

func partitionKey(collection string, part int) string {
	return collection + "/" + strconv.Itoa(part)
}

func (c *lru) Put(ctx context.Context, collection string, part int, data []byte) error {
	key := partitionKey(collection, part)
	c.plocks.Lock(key)
	defer c.plocks.Unlock(key)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.removeLocked(key)
	e := c.recentUncompressedList.PushFront(&cachedPartition{
		collection: collection,
		key:        key,
		value:      data,
	})
	c.pmap[key] = e
	if _, ok := c.collections[collection]; !ok {
		c.collections[collection] = make(map[string]struct{})
	}
	c.collections[collection][key] = struct{}{}
	return c.evictLocked()
}

// Get returns the partition if present, marking it as recently used
func (c *lru) Get(ctx context.Context, collection string, part int) ([]byte, error) {
	key := partitionKey(collection, part)
	c.plocks.Lock(key)
	defer c.plocks.Unlock(key)

	c.lock.Lock()
	if e, ok := c.pmap[key]; ok {
		c.recentUncompressedList.MoveToFront(e)
		c.lock.Unlock()
		return e.Value.(*cachedPartition).value, nil
	}
	ce, ok := c.compressedPmap[key]
	if !ok {
		c.lock.Unlock()
		return nil, errors.NotRetainedError{Key: key}
	}
	c.recentCompressedList.MoveToFront(ce)
	compressed := ce.Value.(*cachedPartition).value
	c.lock.Unlock()
	return decompress(compressed)
}

func (c *lru) Drop(ctx context.Context, collection string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	for key := range c.collections[collection] {
		c.removeLocked(key)
	}
	delete(c.collections, collection)
	return nil
}

func (c *lru) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pmap = make(map[string]*list.Element)
	c.compressedPmap = make(map[string]*list.Element)
	c.recentUncompressedList.Init()
	c.recentCompressedList.Init()
	c.collections = make(map[string]map[string]struct{})
	return nil
}

// Len returns the number of partitions held in each tier
func (c *lru) Len() (uncompressed int, compressed int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.recentUncompressedList.Len(), c.recentCompressedList.Len()
}

func (c *lru) removeLocked(key string) {
	if e, ok := c.pmap[key]; ok {
		c.recentUncompressedList.Remove(e)
		delete(c.pmap, key)
	}
	if e, ok := c.compressedPmap[key]; ok {
		c.recentCompressedList.Remove(e)
		delete(c.compressedPmap, key)
	}
}

func (c *lru) evictLocked() error {
	for c.recentUncompressedList.Len() > c.maxUncompressed {
		oldest := c.recentUncompressedList.Back()
		c.recentUncompressedList.Remove(oldest)
		cp := oldest.Value.(*cachedPartition)
		delete(c.pmap, cp.key)
		if c.maxCompressed == 0 {
			c.forgetLocked(cp)
			continue
		}
		compressed, err := compress(cp.value)
		if err != nil {
			return fmt.Errorf("unable to compress partition %s: %w", cp.key, err)
		}
		c.compressedPmap[cp.key] = c.recentCompressedList.PushFront(&cachedPartition{
			collection: cp.collection,
			key:        cp.key,
			value:      compressed,
		})
	}
	for c.recentCompressedList.Len() > c.maxCompressed {
		oldest := c.recentCompressedList.Back()
		c.recentCompressedList.Remove(oldest)
		cp := oldest.Value.(*cachedPartition)
		delete(c.compressedPmap, cp.key)
		c.forgetLocked(cp)
	}
	return nil
}

func (c *lru) forgetLocked(cp *cachedPartition) {
	if keys, ok := c.collections[cp.collection]; ok {
		delete(keys, cp.key)
		if len(keys) == 0 {
			delete(c.collections, cp.collection)
		}
	}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(zr)
}
