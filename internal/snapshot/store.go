// Package snapshot keeps chart images on disk next to a JSON sidecar.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/yieldview/internal/apperr"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Image sources.
const (
	SourcePNG     = "png"
	SourceBrowser = "browser"
)

// Meta describes one stored chart snapshot.
type Meta struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Revision   uint64    `json:"revision"`
	Labels     []string  `json:"labels"`
	Source     string    `json:"source"`
	Format     string    `json:"format"`
	SizeBytes  int       `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	Notes      string    `json:"notes,omitempty"`
}

// Store manages snapshot files in one directory.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return apperr.Validation(fmt.Sprintf("invalid snapshot id: %q", id))
	}
	return nil
}

// Create assigns an id and timestamp to meta and stores image with it.
func (s *Store) Create(meta Meta, image []byte) (Meta, error) {
	meta.ID = uuid.NewString()
	meta.CreatedAt = s.now().UTC()
	meta.SizeBytes = len(image)
	if meta.Format == "" {
		meta.Format = "png"
	}
	if meta.Labels == nil {
		meta.Labels = []string{}
	}
	if err := s.save(meta, image); err != nil {
		return Meta{}, err
	}
	slog.Info("snapshot stored", "id", meta.ID, "analysis_id", meta.AnalysisID, "revision", meta.Revision, "source", meta.Source, "size_bytes", meta.SizeBytes)
	return meta, nil
}

func (s *Store) save(meta Meta, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := filepath.Join(s.dir, meta.ID+"."+meta.Format)
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, image, 0o644); err != nil {
		return fmt.Errorf("snapshot store: write image: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.removeQuiet(imgPath)
		return fmt.Errorf("snapshot store: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		s.removeQuiet(imgPath)
		return fmt.Errorf("snapshot store: write meta: %w", err)
	}
	return nil
}

// Get reads snapshot metadata by id.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, apperr.New(apperr.CodeNotFound, "snapshot not found: "+id, nil)
		}
		return Meta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns snapshots newest first. A non-empty analysisID filters.
func (s *Store) List(analysisID string) ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("snapshot meta unreadable", "path", path, "error", err)
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("snapshot meta malformed", "path", path, "error", err)
			continue
		}
		if analysisID != "" && meta.AnalysisID != analysisID {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage returns the image bytes and format of a snapshot.
func (s *Store) ReadImage(id string) ([]byte, string, error) {
	if err := validateID(id); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.getLocked(id)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apperr.New(apperr.CodeNotFound, "snapshot image not found: "+id, nil)
		}
		return nil, "", fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta.Format, nil
}

// Delete removes the image and its sidecar.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getLocked(id)
	if err != nil {
		return err
	}
	s.removeQuiet(filepath.Join(s.dir, id+"."+meta.Format))
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	return nil
}

func (s *Store) removeQuiet(path string) {
	if err := os.Remove(path); err != nil {
		slog.Debug("snapshot image cleanup failed", "path", path, "error", err)
	}
}
