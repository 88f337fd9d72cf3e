// Package imagecache serves resized copies of uploaded images. Each filter
// names a bounding box; the first request for an image under a filter
// generates the thumbnail, later requests are served from the cache
// directory as static files.
package imagecache

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rubiojr/roost/pkg/log"
	"golang.org/x/image/draw"
)

// URL prefixes.
const (
	CachePrefix   = "/media/cache"
	ResolvePrefix = "/media/cache/resolve"
)

var (
	ErrUnknownFilter = errors.New("unknown image filter")
	ErrInvalidPath   = errors.New("invalid image path")
	ErrNotFound      = errors.New("image not found")
)

var logger = log.ForService("imagecache")

// Filter resizes images to fit inside Width x Height, keeping the aspect
// ratio. Smaller images are not enlarged.
type Filter struct {
	Width  int
	Height int
}

type Cache struct {
	publicDir string
	cacheDir  string
	filters   map[string]Filter

	// Serializes generation of the same file. Entries live while a
	// request holds or waits for them.
	mu      sync.Mutex
	pending map[string]*fileLock
}

type fileLock struct {
	sync.Mutex
	refs int
}

// New returns a cache reading originals from publicDir and writing
// thumbnails to cacheDir/{filter}/{path}.
func New(publicDir, cacheDir string, filters map[string]Filter) *Cache {
	return &Cache{
		publicDir: publicDir,
		cacheDir:  cacheDir,
		filters:   filters,
		pending:   make(map[string]*fileLock),
	}
}

func (c *Cache) CacheDir() string { return c.cacheDir }

// BrowserPath returns the URL of path under filter: the cached file when it
// exists, otherwise the URL that generates it.
func (c *Cache) BrowserPath(p, filter string) string {
	clean, err := cleanPath(p)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(c.cachedFile(clean, filter)); err == nil {
		return CachePrefix + "/" + filter + "/" + clean
	}
	return ResolvePrefix + "/" + filter + "/" + clean
}

// Resolve generates the thumbnail of p under filter if needed and returns
// its URL.
func (c *Cache) Resolve(p, filter string) (string, error) {
	f, ok := c.filters[filter]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFilter, filter)
	}
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	url := CachePrefix + "/" + filter + "/" + clean
	dst := c.cachedFile(clean, filter)

	unlock := c.lock(dst)
	defer unlock()

	if _, err := os.Stat(dst); err == nil {
		return url, nil
	}

	src := filepath.Join(c.publicDir, filepath.FromSlash(clean))
	if err := generate(src, dst, f); err != nil {
		return "", err
	}
	logger.Debugf("generated %s", dst)
	return url, nil
}

// lock takes the generation lock of key and returns its release.
func (c *Cache) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.pending[key]
	if !ok {
		l = &fileLock{}
		c.pending[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.pending, key)
		}
		c.mu.Unlock()
	}
}

func (c *Cache) cachedFile(clean, filter string) string {
	return filepath.Join(c.cacheDir, filter, filepath.FromSlash(clean))
}

// cleanPath rejects absolute paths and paths leaving the upload tree.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func generate(src, dst string, f Filter) error {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	img, format, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", src, err)
	}

	out := Thumbnail(img, f)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thumb-*")
	if err != nil {
		return fmt.Errorf("creating thumbnail: %w", err)
	}
	defer os.Remove(tmp.Name())

	switch format {
	case "png":
		err = png.Encode(tmp, out)
	case "gif":
		err = gif.Encode(tmp, out, nil)
	default:
		err = jpeg.Encode(tmp, out, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Thumbnail scales img to fit inside the filter box.
func Thumbnail(img image.Image, f Filter) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || (w <= f.Width && h <= f.Height) {
		return img
	}

	scale := min(float64(f.Width)/float64(w), float64(f.Height)/float64(h))
	tw := max(int(float64(w)*scale+0.5), 1)
	th := max(int(float64(h)*scale+0.5), 1)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
