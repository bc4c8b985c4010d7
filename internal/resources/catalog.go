package resources

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
)

//go:embed schemas/*.yaml
var embedded embed.FS

// ErrNoSchema is returned when a known type has no schema file.
var ErrNoSchema = errors.New("no schema file for resource type")

// Catalog resolves resource types to compiled table schemas. Parsed schemas
// are cached; Invalidate drops them so the next lookup reloads from disk.
type Catalog struct {
	base     fs.FS
	override fs.FS
	isKnown  func(Type) bool
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[Type]*tableschema.Schema
	// generation counts invalidations; a schema read across one is not cached
	generation uint64

	onChange []func(Type)
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithOverrideDir layers schema files from dir over the embedded set.
// A file named <type>.yaml in dir wins over the built-in one.
func WithOverrideDir(dir string) CatalogOption {
	return func(c *Catalog) {
		if dir != "" {
			c.override = os.DirFS(dir)
		}
	}
}

// WithFS replaces the embedded schema set. Files are read from the root
// of fsys as <type>.yaml.
func WithFS(fsys fs.FS) CatalogOption {
	return func(c *Catalog) { c.base = fsys }
}

// WithKnown replaces the set of recognised types.
func WithKnown(fn func(Type) bool) CatalogOption {
	return func(c *Catalog) { c.isKnown = fn }
}

// WithLogger sets the catalog logger.
func WithLogger(l *slog.Logger) CatalogOption {
	return func(c *Catalog) { c.logger = l }
}

// NewCatalog builds a catalog over the embedded HSDS schemas.
func NewCatalog(opts ...CatalogOption) *Catalog {
	sub, err := fs.Sub(embedded, "schemas")
	if err != nil {
		panic(fmt.Sprintf("embedded schemas: %v", err))
	}
	c := &Catalog{
		base:    sub,
		isKnown: Known,
		logger:  slog.Default(),
		cache:   make(map[Type]*tableschema.Schema),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsKnown reports whether t is a recognised resource type.
func (c *Catalog) IsKnown(t Type) bool {
	return c.isKnown(t)
}

// Types lists the recognised types that currently resolve to a schema file.
func (c *Catalog) Types() []Type {
	var out []Type
	for _, t := range AllTypes() {
		if !c.isKnown(t) {
			continue
		}
		if _, _, err := c.read(t); err == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveSchema returns the compiled schema for t. An unknown type, a
// missing file and a malformed file are all errors; ErrNoSchema marks the
// missing-file case.
func (c *Catalog) ResolveSchema(t Type) (*tableschema.Schema, error) {
	if !c.isKnown(t) {
		return nil, fmt.Errorf("resource type %q is not known", t)
	}

	c.mu.RLock()
	s, ok := c.cache[t]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	data, from, err := c.read(t)
	if err != nil {
		return nil, err
	}
	s, err = tableschema.ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s (%s): %w", t, from, err)
	}

	c.mu.Lock()
	switch cached, ok := c.cache[t]; {
	case c.generation != gen:
		// invalidated while reading; serve s but let the next lookup reload
	case ok:
		s = cached
	default:
		c.cache[t] = s
	}
	c.mu.Unlock()

	c.logger.Debug("schema loaded", "type", t, "from", from, "fields", len(s.Fields))
	return s, nil
}

// read returns the raw schema file for t and where it came from.
func (c *Catalog) read(t Type) ([]byte, string, error) {
	name := string(t) + ".yaml"
	if c.override != nil {
		data, err := fs.ReadFile(c.override, name)
		if err == nil {
			return data, "override", nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
	}
	data, err := fs.ReadFile(c.base, path.Clean(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrNoSchema, t)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return data, "embedded", nil
}

// Invalidate drops the cached schema for t, or every cached schema when t
// is empty, and notifies OnChange subscribers.
func (c *Catalog) Invalidate(t Type) {
	c.mu.Lock()
	c.generation++
	if t == "" {
		c.cache = make(map[Type]*tableschema.Schema)
	} else {
		delete(c.cache, t)
	}
	hooks := append([]func(Type){}, c.onChange...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(t)
	}
}

// OnChange registers fn to run after a schema is invalidated. An empty
// type means every schema changed.
func (c *Catalog) OnChange(fn func(Type)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}
