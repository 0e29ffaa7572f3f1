package content

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/searchsync/internal/models"
)

// ContentExtension is the file extension of content files.
const ContentExtension = ".md"

var frontMatterDelim = []byte("---")

// FileStore implements Store over a directory of markdown files with YAML front matter.
// An item's id is its front matter id, or its path relative to the directory without extension.
type FileStore struct {
	dir      string
	tenantID int

	mu    sync.Mutex
	paths map[string]string // path -> id, refreshed on every read
}

// NewFileStore returns a store rooted at dir. The directory is created if missing.
func NewFileStore(dir string, tenantID int) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("content directory not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &FileStore{dir: dir, tenantID: tenantID, paths: make(map[string]string)}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// IsContentFile reports whether path looks like a content file.
func IsContentFile(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ContentExtension) && !strings.HasPrefix(base, ".")
}

// ReadFile parses the content file at path.
func (s *FileStore) ReadFile(path string) (*models.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fm, body := splitFrontMatter(data)

	var item models.ContentItem
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &item); err != nil {
			return nil, fmt.Errorf("failed to parse front matter of %s: %w", path, err)
		}
	}
	item.Body = strings.TrimSpace(string(body))
	if item.ID == "" {
		item.ID = s.pathID(path)
	}
	if item.TenantID == 0 {
		item.TenantID = s.tenantID
	}
	if item.Slug == "" {
		item.Slug = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if item.ModifiedAt.IsZero() || item.CreatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			if item.ModifiedAt.IsZero() {
				item.ModifiedAt = info.ModTime().UTC()
			}
			if item.CreatedAt.IsZero() {
				item.CreatedAt = item.ModifiedAt
			}
		}
	}

	s.mu.Lock()
	s.paths[path] = item.ID
	s.mu.Unlock()
	return &item, nil
}

// IDForPath returns the id last read from path. Paths never read fall back to the path-derived id.
func (s *FileStore) IDForPath(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.paths[path]; ok {
		return id
	}
	return s.pathID(path)
}

// Forget drops the cached id of a removed file.
func (s *FileStore) Forget(path string) {
	s.mu.Lock()
	delete(s.paths, path)
	s.mu.Unlock()
}

func (s *FileStore) pathID(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

type fileEntry struct {
	path string
	item *models.ContentItem
}

func (s *FileStore) scan(ctx context.Context) ([]fileEntry, error) {
	var entries []fileEntry
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsContentFile(path) {
			return nil
		}
		item, err := s.ReadFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry{path: path, item: item})
		return nil
	})
	return entries, err
}

// Get returns the item with id.
func (s *FileStore) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	path, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ReadFile(path)
}

func (s *FileStore) find(ctx context.Context, id string) (string, error) {
	entries, err := s.scan(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.item.ID == id {
			return e.path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns items matching typ and status ordered by id.
func (s *FileStore) List(ctx context.Context, typ, status string) ([]*models.ContentItem, error) {
	entries, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	var items []*models.ContentItem
	for _, e := range entries {
		if typ != "" && e.item.Type != typ {
			continue
		}
		if status != "" && e.item.Status != status {
			continue
		}
		items = append(items, e.item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// SetOptions rewrites the search_options key of the item's front matter and keeps everything else.
func (s *FileStore) SetOptions(ctx context.Context, id string, opts models.SearchOptions) error {
	path, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fm, body := splitFrontMatter(data)

	var doc yaml.Node
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &doc); err != nil {
			return fmt.Errorf("failed to parse front matter of %s: %w", path, err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("front matter of %s is not a mapping", path)
	}

	var value yaml.Node
	if err := value.Encode(opts); err != nil {
		return err
	}
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "search_options" {
			root.Content[i+1] = &value
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "search_options"}, &value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Write(frontMatterDelim)
	buf.WriteByte('\n')
	buf.Write(out)
	buf.Write(frontMatterDelim)
	buf.WriteByte('\n')
	buf.Write(body)
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
func splitFrontMatter(data []byte) (fm, body []byte) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, append(frontMatterDelim, '\n')) {
		return nil, data
	}
	rest := data[len(frontMatterDelim)+1:]
	if bytes.HasPrefix(rest, append(frontMatterDelim, '\n')) {
		return nil, rest[len(frontMatterDelim)+1:]
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")+1], nil
		}
		return nil, data
	}
	return rest[:end+1], rest[end+len("\n---\n"):]
}
