package rdb

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// indexCache persists per-file time step indexes in a bolt database, keyed
// by file path. Scanning the physical time of every step is the dominant
// cost of loading a large results file; a cache hit replaces it with one
// header fingerprint check.
type indexCache struct {
	db *bolt.DB
}

var cacheBucket = []byte("timeindex")

func openIndexCache(path string) (*indexCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &indexCache{db: db}, nil
}

func (ic *indexCache) close() error {
	return ic.db.Close()
}

// cachedIndex is the persisted form of one container's time index. The
// fingerprint and layout fields guard against the path being reused for a
// different or rewritten file; a growing file keeps its fingerprint and the
// scan resumes at NextStep.
type cachedIndex struct {
	Fingerprint uint64    `msgpack:"fp"`
	HeaderSize  int64     `msgpack:"hs"`
	StepBytes   int       `msgpack:"sb"`
	Times       []float64 `msgpack:"t"`
	Steps       []int     `msgpack:"s"`
	NextStep    int       `msgpack:"n"`
}

func (ic *indexCache) load(file string) (*cachedIndex, bool) {
	var ci *cachedIndex
	ic.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(cacheBucket).Get([]byte(file))
		if raw == nil {
			return nil
		}
		var dec cachedIndex
		if err := msgpack.Unmarshal(raw, &dec); err != nil {
			return nil
		}
		ci = &dec
		return nil
	})
	if ci == nil || len(ci.Times) != len(ci.Steps) {
		return nil, false
	}
	return ci, true
}

func (ic *indexCache) store(file string, ci *cachedIndex) error {
	raw, err := msgpack.Marshal(ci)
	if err != nil {
		return err
	}
	return ic.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(file), raw)
	})
}

// fingerprint hashes the container's text header. Any catalog change gives a
// new fingerprint, while appending step records to a growing file does not.
func (c *Container) fingerprint() (uint64, error) {
	buf := make([]byte, c.headerSize)
	if _, err := c.f.ReadAt(buf, 0); err != nil {
		return 0, fmt.Errorf("rdb: %s: %w", c.fileName, err)
	}
	return xxhash.Sum64(buf), nil
}

// loadCachedIndex seeds the time index from the cache when the cached entry
// matches this file's identity. A stale or mismatched entry is ignored and
// the full scan runs as usual.
func (c *Container) loadCachedIndex() {
	ci, ok := c.ex.cache.load(c.fileName)
	if !ok || ci.HeaderSize != c.headerSize || ci.StepBytes != c.stepSize {
		return
	}
	fp, err := c.fingerprint()
	if err != nil || fp != ci.Fingerprint {
		return
	}
	c.times = make([]timeKey, len(ci.Times))
	for i := range ci.Times {
		c.times[i] = timeKey{ci.Times[i], ci.Steps[i]}
	}
	c.nextStep = ci.NextStep
	c.logger().Debug("rdb: time index restored from cache", "file", c.fileName, "steps", len(c.times))
}

func (c *Container) storeCachedIndex() {
	fp, err := c.fingerprint()
	if err != nil {
		return
	}
	ci := &cachedIndex{
		Fingerprint: fp,
		HeaderSize:  c.headerSize,
		StepBytes:   c.stepSize,
		Times:       make([]float64, len(c.times)),
		Steps:       make([]int, len(c.times)),
		NextStep:    c.nextStep,
	}
	for i, k := range c.times {
		ci.Times[i] = k.t
		ci.Steps[i] = k.step
	}
	if err := c.ex.cache.store(c.fileName, ci); err != nil {
		c.logger().Warn("rdb: cannot persist time index", "file", c.fileName, "err", err)
	}
}
