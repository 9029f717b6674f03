package jsrt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned by loaders that have nothing for a locator.
var ErrNotFound = errors.New("jsrt: source not found")

// SourceLoader fetches the source text behind a locator. Loaders are called
// off the loop and may block.
type SourceLoader interface {
	Load(ctx context.Context, locator string) ([]byte, error)
}

// LoaderFunc adapts a function to SourceLoader.
type LoaderFunc func(ctx context.Context, locator string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// MapLoader serves sources from memory, keyed by exact locator.
type MapLoader map[string]string

func (m MapLoader) Load(ctx context.Context, locator string) ([]byte, error) {
	src, ok := m[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return []byte(src), nil
}

// FSLoader serves sources from an fs.FS. Locators are cleaned and made
// relative, so "./a.js", "/a.js" and "a.js" name the same file.
type FSLoader struct {
	FS fs.FS
}

func (l FSLoader) Load(ctx context.Context, locator string) ([]byte, error) {
	name := fsPath(locator)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("jsrt: invalid locator %q", locator)
	}
	b, err := fs.ReadFile(l.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return b, err
}

// DirLoader returns an FSLoader rooted at dir on the local filesystem.
func DirLoader(dir string) FSLoader {
	return FSLoader{FS: os.DirFS(dir)}
}

func fsPath(locator string) string {
	p := path.Clean("/" + strings.TrimPrefix(locator, "./"))
	return strings.TrimPrefix(p, "/")
}

// Router dispatches locators to loaders by prefix. The longest matching
// prefix wins. Mounted loaders see the locator with the prefix removed;
// handled loaders see it unchanged, which suits scheme prefixes such as
// "https://".
type Router struct {
	routes   []route
	Fallback SourceLoader
}

type route struct {
	prefix string
	strip  bool
	loader SourceLoader
}

// Mount serves locators under prefix from l, stripping the prefix.
func (r *Router) Mount(prefix string, l SourceLoader) {
	r.add(route{prefix: prefix, strip: true, loader: l})
}

// Handle serves locators under prefix from l, passing them unchanged.
func (r *Router) Handle(prefix string, l SourceLoader) {
	r.add(route{prefix: prefix, loader: l})
}

func (r *Router) add(rt route) {
	r.routes = append(r.routes, rt)
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].prefix) > len(r.routes[j].prefix)
	})
}

func (r Router) Load(ctx context.Context, locator string) ([]byte, error) {
	for _, rt := range r.routes {
		if !strings.HasPrefix(locator, rt.prefix) {
			continue
		}
		name := locator
		if rt.strip {
			name = strings.TrimPrefix(locator, rt.prefix)
		}
		return rt.loader.Load(ctx, name)
	}
	if r.Fallback != nil {
		return r.Fallback.Load(ctx, locator)
	}
	return nil, fmt.Errorf("%w: no loader for %s", ErrNotFound, locator)
}
