package compiler

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Key identifies a compilation: the BLAKE2b-256 digest of the source and
// of the options that change generated code
func Key(source string, opts Options) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("compiler: blake2b: " + err.Error())
	}
	h.Write(opts.fingerprint())
	h.Write([]byte{0})
	h.Write([]byte(source))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Cache memoizes compiled programs by Key. It is safe for concurrent use.
// Failed compilations are not cached.
type Cache struct {
	mu      sync.Mutex
	entries map[[32]byte]*Program
	hits    int
	misses  int
}

func NewCache() *Cache {
	return &Cache{entries: make(map[[32]byte]*Program)}
}

// Compile returns the cached program for source and opts, compiling it
// on a miss. A hit returns the program compiled first, under its name.
func (c *Cache) Compile(source, name string, opts Options) (*Program, error) {
	key := Key(source, opts)
	c.mu.Lock()
	if p, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return p, nil
	}
	c.misses++
	c.mu.Unlock()

	p, err := Compile(source, name, opts)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// a concurrent miss may have stored the same program first
	if prev, ok := c.entries[key]; ok {
		return prev, nil
	}
	c.entries[key] = p
	return p, nil
}

// Stats returns the number of hits and misses so far
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached programs
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
