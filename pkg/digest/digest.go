// Package digest computes content digests used to decide whether two files
// with the same size and modification time really hold the same bytes.
package digest

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/paulschiretz/pgl-mirror/pkg/pool"
)

// Size is the length of a digest in bytes.
const Size = md5.Size

// Sum is an MD5 digest.
type Sum [Size]byte

// cacheKey identifies one version of a file. A file that changes size or
// mtime gets a new key, so a stale entry is never returned.
type cacheKey struct {
	path    string
	size    int64
	modNano int64
}

// Digester streams files through MD5. It is safe for concurrent use.
type Digester struct {
	buffers *pool.FixedBufferPool
	cache   *lru.Cache[cacheKey, Sum]
}

// New returns a Digester. cacheSize <= 0 disables caching; a nil pool gets a
// private pool of pool.DefaultBufferSize buffers.
func New(cacheSize int, buffers *pool.FixedBufferPool) (*Digester, error) {
	if buffers == nil {
		buffers = pool.NewFixedBuffer(pool.DefaultBufferSize)
	}
	d := &Digester{buffers: buffers}
	if cacheSize > 0 {
		cache, err := lru.New[cacheKey, Sum](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create digest cache: %w", err)
		}
		d.cache = cache
	}
	return d, nil
}

// Sum returns the digest of the file at path.
func (d *Digester) Sum(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Sum{}, err
	}
	if !info.Mode().IsRegular() {
		return Sum{}, fmt.Errorf("%s is not a regular file", path)
	}

	key := cacheKey{path: path, size: info.Size(), modNano: info.ModTime().UnixNano()}
	if d.cache != nil {
		if sum, ok := d.cache.Get(key); ok {
			return sum, nil
		}
	}

	bufPtr := d.buffers.Get()
	defer d.buffers.Put(bufPtr)

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, *bufPtr); err != nil {
		return Sum{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var sum Sum
	copy(sum[:], h.Sum(nil))
	if d.cache != nil {
		d.cache.Add(key, sum)
	}
	return sum, nil
}

// Forget drops every cached digest for path. Used after the file was rewritten
// within the same mtime granularity.
func (d *Digester) Forget(path string) {
	if d.cache == nil {
		return
	}
	for _, k := range d.cache.Keys() {
		if k.path == path {
			d.cache.Remove(k)
		}
	}
}

// Len returns the number of cached digests.
func (d *Digester) Len() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

// String renders the digest as lowercase hex.
func (s Sum) String() string {
	return fmt.Sprintf("%x", s[:])
}
