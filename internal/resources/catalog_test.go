package resources

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemasCompile(t *testing.T) {
	c := NewCatalog()
	for _, rt := range AllTypes() {
		s, err := c.ResolveSchema(rt)
		require.NoError(t, err, "type %s", rt)
		assert.NotEmpty(t, s.Fields, "type %s", rt)
	}
	assert.Len(t, c.Types(), len(AllTypes()))
}

func TestServiceSchemaHasEmail(t *testing.T) {
	s, err := NewCatalog().ResolveSchema(Service)
	require.NoError(t, err)
	assert.NotZero(t, s.FieldIndex("email"))
}

func TestResolveSchema_Cached(t *testing.T) {
	c := NewCatalog()
	a, err := c.ResolveSchema(Organization)
	require.NoError(t, err)
	b, err := c.ResolveSchema(Organization)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c.Invalidate(Organization)
	d, err := c.ResolveSchema(Organization)
	require.NoError(t, err)
	assert.NotSame(t, a, d)
}

// hookFS runs onOpen before every Open of the wrapped file system.
type hookFS struct {
	fsys   fs.FS
	onOpen func()
}

func (h hookFS) Open(name string) (fs.File, error) {
	h.onOpen()
	return h.fsys.Open(name)
}

func TestResolveSchema_InvalidatedDuringRead(t *testing.T) {
	var (
		c     *Catalog
		opens int
	)
	fsys := hookFS{
		fsys: fstest.MapFS{"phone.yaml": {Data: []byte("fields:\n  - name: number\n")}},
		onOpen: func() {
			opens++
			if opens == 1 {
				c.Invalidate(Phone)
			}
		},
	}
	c = NewCatalog(WithFS(fsys), WithKnown(func(t Type) bool { return t == Phone }))

	first, err := c.ResolveSchema(Phone)
	require.NoError(t, err)
	second, err := c.ResolveSchema(Phone)
	require.NoError(t, err)
	third, err := c.ResolveSchema(Phone)
	require.NoError(t, err)

	assert.NotSame(t, first, second, "a schema read across an invalidation must not be cached")
	assert.Same(t, second, third)
	assert.Equal(t, 2, opens)
}

func TestResolveSchema_Failures(t *testing.T) {
	fsys := fstest.MapFS{
		"widget.yaml": {Data: []byte("fields: [{name: id}]\n")},
		"broken.yaml": {Data: []byte("fields: [{name: id, type: colour}]\n")},
	}
	known := map[Type]bool{"widget": true, "gadget": true, "broken": true}
	c := NewCatalog(WithFS(fsys), WithKnown(func(t Type) bool { return known[t] }))

	_, err := c.ResolveSchema("widget")
	require.NoError(t, err)

	_, err = c.ResolveSchema("gadget")
	assert.ErrorIs(t, err, ErrNoSchema)

	_, err = c.ResolveSchema("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")

	_, err = c.ResolveSchema("sprocket")
	assert.Error(t, err)

	assert.Equal(t, []Type(nil), c.Types(), "only HSDS names are listed")
}

func TestOverrideDirWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "funding.yaml"), []byte("fields:\n  - name: only\n"), 0o600))

	s, err := NewCatalog(WithOverrideDir(dir)).ResolveSchema(Funding)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, s.FieldNames())
}

func TestOnChange(t *testing.T) {
	c := NewCatalog()
	var got []Type
	c.OnChange(func(t Type) { got = append(got, t) })
	c.Invalidate(Phone)
	c.Invalidate("")
	assert.Equal(t, []Type{Phone, ""}, got)
}

func TestWatch_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "funding.yaml")
	require.NoError(t, os.WriteFile(file, []byte("fields:\n  - name: a\n"), 0o600))

	c := NewCatalog(WithOverrideDir(dir))
	changed := make(chan Type, 8)
	c.OnChange(func(t Type) {
		select {
		case changed <- t:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, dir) }()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("fields:\n  - name: b\n"), 0o600))

	select {
	case rt := <-changed:
		assert.Equal(t, Funding, rt)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	require.NoError(t, <-done)

	s, err := c.ResolveSchema(Funding)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, s.FieldNames())
}

func TestTypeFromPath(t *testing.T) {
	rt, ok := typeFromPath("/x/y/phone.yaml")
	assert.True(t, ok)
	assert.Equal(t, Phone, rt)

	_, ok = typeFromPath("/x/y/phone.yaml.swp")
	assert.False(t, ok)
}
