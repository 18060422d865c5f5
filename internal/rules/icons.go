package rules

import (
	"io/fs"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// IconResolver decides whether an icon source can be loaded.
type IconResolver interface {
	Resolve(source string) bool
}

// ResolverFunc adapts a function to IconResolver.
type ResolverFunc func(source string) bool

func (f ResolverFunc) Resolve(source string) bool { return f(source) }

// IconCache remembers resolver outcomes keyed case-insensitively. Entries are
// never evicted. Safe for concurrent use.
type IconCache struct {
	resolver IconResolver

	mu      sync.Mutex
	folder  cases.Caser
	entries map[string]bool
}

// NewIconCache wraps resolver. A nil resolver accepts every non-empty source.
func NewIconCache(resolver IconResolver) *IconCache {
	if resolver == nil {
		resolver = ResolverFunc(func(source string) bool { return source != "" })
	}
	return &IconCache{
		resolver: resolver,
		folder:   cases.Fold(),
		entries:  make(map[string]bool),
	}
}

// Validate returns the cached outcome for source, resolving it on first use.
func (c *IconCache) Validate(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Caser carries state between calls and is not safe for concurrent use.
	key := c.folder.String(source)
	if ok, found := c.entries[key]; found {
		return ok
	}
	ok := source != "" && c.resolver.Resolve(source)
	c.entries[key] = ok
	return ok
}

// Len reports the number of distinct sources seen.
func (c *IconCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// FSResolver accepts .swf sources present in FS. Backslashes are treated as
// separators and a leading "interface/" prefix is implied.
type FSResolver struct {
	FS fs.FS
}

func (r FSResolver) Resolve(source string) bool {
	name := strings.ReplaceAll(strings.TrimSpace(source), "\\", "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if !strings.EqualFold(path.Ext(name), ".swf") || !fs.ValidPath(name) {
		return false
	}
	if r.FS == nil {
		return true
	}
	if _, err := fs.Stat(r.FS, name); err == nil {
		return true
	}
	if _, err := fs.Stat(r.FS, path.Join("interface", name)); err == nil {
		return true
	}
	return false
}
