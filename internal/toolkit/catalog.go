// Package toolkit hosts the toolkit catalog and the builtin toolkits that
// ship with the binary. External toolkits plug in through the same
// registration entrypoint contract.
package toolkit

import (
	"log/slog"
	"sync"

	"github.com/toolfleet/toolfleet/internal/config"
	"github.com/toolfleet/toolfleet/internal/registry"
)

// Catalog maps toolkit slugs to worker registration entrypoints. It is the
// registry's Loader: a slug without an entry simply has no worker module.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]registry.RegisterFunc
	logger  *slog.Logger
}

func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		entries: make(map[string]registry.RegisterFunc),
		logger:  logger,
	}
}

// Add installs a toolkit's worker entrypoint under its slug.
func (c *Catalog) Add(slug string, entry registry.RegisterFunc) {
	if slug == "" || entry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slug] = entry
}

// Slugs returns the catalogued toolkit slugs, for diagnostics.
func (c *Catalog) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slugs := make([]string, 0, len(c.entries))
	for s := range c.entries {
		slugs = append(slugs, s)
	}
	return slugs
}

// ResolveWorkerEntrypoint implements registry.Loader.
func (c *Catalog) ResolveWorkerEntrypoint(slug string) (registry.RegisterFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[slug]
	return entry, ok
}

// Builtin returns a catalog holding the toolkits compiled into the binary.
func Builtin(logger *slog.Logger) *Catalog {
	c := NewCatalog(logger)
	c.Add("echo", registerEcho)
	return c
}

// FromConfig builds the catalog from the builtin set, dropping toolkits the
// configuration explicitly disables. Toolkits absent from the configuration
// stay available.
func FromConfig(toolkits map[string]config.ToolkitConf, logger *slog.Logger) *Catalog {
	c := Builtin(logger)
	for slug, conf := range toolkits {
		if conf.Enabled {
			continue
		}
		c.mu.Lock()
		if _, ok := c.entries[slug]; ok {
			c.logger.Info("toolkit disabled by configuration", "toolkit", slug)
			delete(c.entries, slug)
		}
		c.mu.Unlock()
	}
	return c
}
