// Package scenario owns the active scenario catalog: generation, clipart
// normalization, retirement and background replenishment.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/generation"
	"github.com/abhisek/lingoflow/internal/store"
)

// ErrNoScenarios is returned when the backend produced nothing usable.
var ErrNoScenarios = errors.New("no scenarios generated")

// Catalog wraps the scenario repository with generation flows.
type Catalog struct {
	repo      store.ScenarioRepo
	settings  store.SettingsRepo
	gen       generation.Client
	assets    *Assets
	batchSize int
	log       *zap.Logger
}

// NewCatalog creates a catalog generating batchSize scenarios per full
// regeneration.
func NewCatalog(repo store.ScenarioRepo, settings store.SettingsRepo, gen generation.Client, assets *Assets, batchSize int, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = generation.DefaultBatchSize
	}
	return &Catalog{
		repo:      repo,
		settings:  settings,
		gen:       gen,
		assets:    assets,
		batchSize: batchSize,
		log:       log.Named("catalog"),
	}
}

// Assets returns the clipart resolver.
func (c *Catalog) Assets() *Assets { return c.assets }

// List returns the active scenarios.
func (c *Catalog) List(ctx context.Context) ([]store.Scenario, error) {
	return c.repo.List(ctx)
}

// Get returns one active scenario or store.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*store.Scenario, error) {
	return c.repo.Get(ctx, id)
}

// Add inserts scenarios after clipart normalization, leaving existing ids
// untouched. It returns how many were inserted.
func (c *Catalog) Add(ctx context.Context, scenarios []store.Scenario) (int, error) {
	return c.repo.AddIfAbsent(ctx, c.normalize(scenarios))
}

// Regenerate replaces the whole catalog with a fresh batch. The existing
// catalog is kept when nothing could be generated.
func (c *Catalog) Regenerate(ctx context.Context) ([]store.Scenario, error) {
	generated, err := c.generate(ctx, c.batchSize)
	if err != nil {
		return nil, err
	}
	normalized := c.normalize(generated)
	if err := c.repo.ReplaceAll(ctx, normalized); err != nil {
		return nil, fmt.Errorf("replace scenarios: %w", err)
	}
	c.log.Info("catalog regenerated", zap.Int("count", len(normalized)))
	return normalized, nil
}

// Replenish generates n scenarios and adds the ones whose ids are new.
func (c *Catalog) Replenish(ctx context.Context, n int) (int, error) {
	generated, err := c.generate(ctx, n)
	if err != nil {
		return 0, err
	}
	added, err := c.Add(ctx, generated)
	if err != nil {
		return 0, fmt.Errorf("add scenarios: %w", err)
	}
	return added, nil
}

// Retire removes a scenario from the active set. Unknown ids are ignored.
func (c *Catalog) Retire(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, id)
}

func (c *Catalog) generate(ctx context.Context, n int) ([]store.Scenario, error) {
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	generated := c.gen.GenerateScenarios(ctx, settings.Model, settings.PracticeLanguage, settings.UILanguage, n)
	if len(generated) == 0 {
		return nil, ErrNoScenarios
	}
	return generated, nil
}

func (c *Catalog) normalize(scenarios []store.Scenario) []store.Scenario {
	out := make([]store.Scenario, len(scenarios))
	for i, s := range scenarios {
		if resolved := c.assets.Resolve(s.Clipart); resolved != s.Clipart {
			c.log.Debug("clipart replaced", zap.String("scenario", s.ID), zap.String("clipart", s.Clipart))
			s.Clipart = resolved
		}
		out[i] = s
	}
	return out
}
