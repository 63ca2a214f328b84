// Package enrich attaches advisory descriptions and mechanic types to
// abilities. Enrichment never changes timing or damage and the pipeline runs
// the same without it.
package enrich

import (
	"context"
	"fmt"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/names"
)

// Annotation is the advisory data for one ability.
type Annotation struct {
	Name         string `koanf:"name"`
	Description  string `koanf:"description"`
	MechanicType string `koanf:"mechanic_type"`
}

// Enricher looks up the annotation of an ability name.
type Enricher interface {
	Enrich(ctx context.Context, name string) (Annotation, bool)
}

// Catalog is a static Enricher keyed by normalized ability name.
type Catalog struct {
	entries map[string]Annotation
}

// NewCatalog builds a catalog from annotations. Later duplicates win.
func NewCatalog(annotations ...Annotation) *Catalog {
	c := &Catalog{entries: make(map[string]Annotation, len(annotations))}
	for _, a := range annotations {
		if k := names.Normalize(a.Name); k != "" {
			c.entries[k] = a
		}
	}
	return c
}

// LoadCatalog reads a YAML catalog:
//
//	abilities:
//	  - name: Akh Morn
//	    description: Stacked party damage, repeated hits
//	    mechanic_type: stack
func LoadCatalog(_ context.Context, path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, path, err)
	}
	var annotations []Annotation
	if err := k.UnmarshalWithConf("abilities", &annotations, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, path, err)
	}
	return NewCatalog(annotations...), nil
}

// Enrich implements Enricher.
func (c *Catalog) Enrich(_ context.Context, name string) (Annotation, bool) {
	a, ok := c.entries[names.Normalize(name)]
	return a, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.entries) }

type cached struct {
	a  Annotation
	ok bool
}

// Cache memoizes lookups for one reconcile run. Create one per run.
type Cache struct {
	mu     sync.Mutex
	byName map[string]cached
	hits   int
}

// NewCache creates an empty run cache.
func NewCache() *Cache {
	return &Cache{byName: make(map[string]cached)}
}

// Lookup returns the annotation for name, asking e only on the first call per
// normalized name.
func (c *Cache) Lookup(ctx context.Context, e Enricher, name string) (Annotation, bool) {
	k := names.Normalize(name)
	c.mu.Lock()
	if v, ok := c.byName[k]; ok {
		c.hits++
		c.mu.Unlock()
		return v.a, v.ok
	}
	c.mu.Unlock()

	a, ok := e.Enrich(ctx, name)

	c.mu.Lock()
	c.byName[k] = cached{a: a, ok: ok}
	c.mu.Unlock()
	return a, ok
}

// Hits returns how many lookups were answered from the cache.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Apply annotates actions in place and returns how many were enriched. A nil
// enricher leaves actions untouched. cache may be nil.
func Apply(ctx context.Context, e Enricher, cache *Cache, actions []model.AggregatedAction) int {
	if e == nil {
		return 0
	}
	if cache == nil {
		cache = NewCache()
	}
	n := 0
	for i := range actions {
		a, ok := cache.Lookup(ctx, e, actions[i].Name)
		if !ok {
			continue
		}
		actions[i].Description = a.Description
		actions[i].MechanicType = a.MechanicType
		n++
	}
	return n
}
