package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/folio/internal/extract"
)

// cacheSchema describes the on-disk cache document: string page numbers
// mapping to page results. Anything that doesn't validate is treated as
// corruption and the cache degrades to empty.
const cacheSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"required": ["page_number", "markdown", "ends_incomplete"],
		"properties": {
			"page_number": {"type": "integer", "minimum": 1},
			"markdown": {"type": "string"},
			"ends_incomplete": {"type": "boolean"},
			"incomplete_text": {"type": "string"}
		}
	}
}`

// Cache is a persistent per-book store of page results, one JSON document per
// source PDF. It is only ever touched by the single processing goroutine, so
// no locking is needed.
type Cache struct {
	dir    string
	schema *jsonschema.Schema
	log    *slog.Logger
}

// NewCache creates a cache rooted at dir, creating it if needed.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{
		dir:    dir,
		schema: jsonschema.MustCompileString("cache.json", cacheSchema),
		log:    logger,
	}, nil
}

// CacheKey derives the cache key for a document from its file stem. Distinct
// documents never collide; the same document always yields the same key.
func CacheKey(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PageKey converts a page number to its cache map key. The same representation
// is used on write and on lookup.
func PageKey(pageNum int) string {
	return strconv.Itoa(pageNum)
}

// filePath returns the cache file for a key.
func (c *Cache) filePath(key string) string {
	return filepath.Join(c.dir, key+"_cache.json")
}

// Load returns the cached page results for key. A missing, unreadable, or
// schema-invalid cache file degrades to an empty map; corruption is logged,
// never fatal.
func (c *Cache) Load(key string) map[string]extract.PageResult {
	path := c.filePath(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("could not read cache file", "path", path, "error", err)
		}
		return map[string]extract.PageResult{}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		c.log.Warn("cache file is not valid JSON, reprocessing from scratch", "path", path, "error", err)
		return map[string]extract.PageResult{}
	}
	if err := c.schema.Validate(doc); err != nil {
		c.log.Warn("cache file has unexpected shape, reprocessing from scratch", "path", path, "error", err)
		return map[string]extract.PageResult{}
	}

	var pages map[string]extract.PageResult
	if err := json.Unmarshal(data, &pages); err != nil {
		c.log.Warn("could not decode cache file", "path", path, "error", err)
		return map[string]extract.PageResult{}
	}

	c.log.Info("loaded cache", "path", path, "pages", len(pages))
	return pages
}

// Save persists the full mapping for key, replacing any prior content. The
// write goes to a temp file first and is renamed into place, so a kill
// mid-write leaves the previous version intact.
func (c *Cache) Save(key string, pages map[string]extract.PageResult) error {
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.filePath(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}
