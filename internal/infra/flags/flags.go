// Package flags serves per-tenant cache variations from a YAML file that is
// re-read on a cron schedule.
//
//	default:
//	  notification: 60
//	  configurations: 60
//	  brand: 60
//	tenants:
//	  acme:
//	    notification: 0
//	    drafts: 30
//
// A tenant entry replaces the default as a whole.
package flags

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"notification-prep/internal/domain/entity"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("flags: not loaded")

// File is the document stored in the flag file.
type File struct {
	Default entity.CacheVariation            `yaml:"default"`
	Tenants map[string]entity.CacheVariation `yaml:"tenants"`
}

// Parse decodes a flag file. Unknown keys are rejected so typos do not
// silently disable caching.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("flags: parse: %w", err)
	}
	return f, nil
}

// Source implements the prepare flag lookup over a flag file.
type Source struct {
	path   string
	read   func(string) ([]byte, error)
	logger *slog.Logger

	mu       sync.RWMutex
	file     File
	loaded   bool
	loadedAt time.Time
}

// NewSource returns a Source for path. Call Load before use.
func NewSource(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, read: os.ReadFile, logger: logger}
}

// Load re-reads the flag file. On failure the previously loaded flags stay
// in effect.
func (s *Source) Load() error {
	data, err := s.read(s.path)
	if err != nil {
		return fmt.Errorf("flags: read %s: %w", s.path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.file = f
	s.loaded = true
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("flags loaded",
		slog.String("path", s.path),
		slog.Int("tenants", len(f.Tenants)))
	return nil
}

// LoadedAt returns the time of the last successful load.
func (s *Source) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// CacheVariation returns the variation for tenantID, or the default when the
// tenant has no entry.
func (s *Source) CacheVariation(_ context.Context, tenantID string) (entity.CacheVariation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return entity.CacheVariation{}, ErrNotLoaded
	}
	if v, ok := s.file.Tenants[tenantID]; ok {
		return v, nil
	}
	return s.file.Default, nil
}

// Schedule registers a reload on c for the cron spec. onReload, when set,
// receives the result of every scheduled reload.
func (s *Source) Schedule(c *cron.Cron, spec string, onReload func(error)) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		err := s.Load()
		if err != nil {
			s.logger.Warn("flags reload failed, keeping previous flags",
				slog.String("path", s.path),
				slog.Any("error", err))
		}
		if onReload != nil {
			onReload(err)
		}
	})
}
