package scenario

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/store"
)

// fakeGen serves scenario batches from a queue; other calls are unused here.
type fakeGen struct {
	mu      sync.Mutex
	batches [][]store.Scenario
	calls   []int
	block   chan struct{}
}

func (g *fakeGen) GenerateScenarios(_ context.Context, _, _, _ string, count int) []store.Scenario {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, count)
	if len(g.batches) == 0 {
		return []store.Scenario{}
	}
	b := g.batches[0]
	g.batches = g.batches[1:]
	return b
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGen) ListModels(context.Context) []llm.ModelInfo { return nil }
func (g *fakeGen) ChatReply(context.Context, string, string, string, string, string, []store.Message) string {
	return ""
}
func (g *fakeGen) EvaluateGoal(context.Context, string, string, []store.Message) bool { return false }
func (g *fakeGen) GenerateHint(context.Context, string, string, string, string, string, []store.Message) string {
	return ""
}
func (g *fakeGen) GenerateSummary(context.Context, string, string, string, string, []store.Message) (string, error) {
	return "", nil
}

func newTestCatalog(t *testing.T, gen *fakeGen) (*Catalog, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assets, err := NewAssets("")
	require.NoError(t, err)
	return NewCatalog(s.ScenarioRepo(), s.SettingsRepo(), gen, assets, 2, nil), s
}

func sc(id, clipart string) store.Scenario {
	return store.Scenario{ID: id, Setting: "setting " + id, Goal: "goal " + id, Description: "d", Clipart: clipart}
}

func TestAssets_Builtin(t *testing.T) {
	a, err := NewAssets("")
	require.NoError(t, err)

	assert.Equal(t, "hotel_reception_desk.png", a.Resolve("hotel_reception_desk.png"))
	assert.Equal(t, store.DefaultClipart, a.Resolve("made_up.png"))
	assert.Equal(t, store.DefaultClipart, a.Resolve(""))
	assert.Equal(t, store.DefaultClipart, a.Resolve("../hotel_reception_desk.png"))
	assert.Len(t, a.Names(), len(BuiltinCliparts))
}

func TestAssets_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cafe_counter.png"), []byte("png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	a, err := NewAssets(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, a.Dir())
	assert.Equal(t, "cafe_counter.png", a.Resolve("cafe_counter.png"))
	assert.Equal(t, store.DefaultClipart, a.Resolve("notes.txt"))
	assert.Equal(t, store.DefaultClipart, a.Resolve("nested.png"))
	assert.Equal(t, store.DefaultClipart, a.Resolve("hotel_reception_desk.png"), "builtin names only count without a directory")
	assert.Equal(t, []string{"cafe_counter.png", store.DefaultClipart}, a.Names())

	_, err = NewAssets(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCatalog_AddNormalizesClipart(t *testing.T) {
	c, _ := newTestCatalog(t, &fakeGen{})
	ctx := context.Background()

	n, err := c.Add(ctx, []store.Scenario{sc("a", "bogus.png"), sc("b", "hospital_reception.png")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, store.DefaultClipart, a.Clipart)

	b, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "hospital_reception.png", b.Clipart)
}

func TestCatalog_Regenerate(t *testing.T) {
	gen := &fakeGen{batches: [][]store.Scenario{{sc("x", "nope.png"), sc("y", "")}}}
	c, _ := newTestCatalog(t, gen)
	ctx := context.Background()

	_, err := c.Add(ctx, []store.Scenario{sc("old", "")})
	require.NoError(t, err)

	got, err := c.Regenerate(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{2}, gen.calls, "batch size is passed through")

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].ID)
	assert.Equal(t, store.DefaultClipart, list[0].Clipart)
}

func TestCatalog_RegenerateEmptyKeepsCatalog(t *testing.T) {
	c, _ := newTestCatalog(t, &fakeGen{})
	ctx := context.Background()

	_, err := c.Add(ctx, []store.Scenario{sc("keep", "")})
	require.NoError(t, err)

	_, err = c.Regenerate(ctx)
	require.ErrorIs(t, err, ErrNoScenarios)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCatalog_ReplenishAndRetire(t *testing.T) {
	gen := &fakeGen{batches: [][]store.Scenario{{sc("a", "")}, {sc("b", "")}}}
	c, _ := newTestCatalog(t, gen)
	ctx := context.Background()

	_, err := c.Add(ctx, []store.Scenario{sc("a", "hotel_reception_desk.png")})
	require.NoError(t, err)

	added, err := c.Replenish(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, added, "existing id is not overwritten")

	a, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hotel_reception_desk.png", a.Clipart)

	added, err = c.Replenish(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	require.NoError(t, c.Retire(ctx, "a"))
	require.NoError(t, c.Retire(ctx, "a"), "retiring twice is a no-op")
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = c.Replenish(ctx, 1)
	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestReplenisher_AddsInBackground(t *testing.T) {
	gen := &fakeGen{batches: [][]store.Scenario{{sc("fresh", "")}}}
	c, _ := newTestCatalog(t, gen)
	r := NewReplenisher(c, 4, 0, nil)
	defer r.Close()

	require.True(t, r.Dispatch("completed"))
	require.Eventually(t, func() bool {
		_, err := c.Get(context.Background(), "fresh")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReplenisher_DropsWhenFull(t *testing.T) {
	gen := &fakeGen{block: make(chan struct{})}
	c, _ := newTestCatalog(t, gen)
	r := NewReplenisher(c, 1, 0, nil)

	// The first job is picked up by the worker and blocks in generation;
	// the second fills the queue and the third is dropped.
	require.True(t, r.Dispatch("one"))
	require.Eventually(t, func() bool { return len(r.jobs) == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, r.Dispatch("two"))
	assert.False(t, r.Dispatch("three"))

	close(gen.block)
	r.Close()
	assert.False(t, r.Dispatch("after close"))
	assert.LessOrEqual(t, gen.callCount(), 2)
}

func TestReplenisher_FailureIsContained(t *testing.T) {
	gen := &fakeGen{}
	c, _ := newTestCatalog(t, gen)
	r := NewReplenisher(c, 2, time.Millisecond, nil)

	require.True(t, r.Dispatch("completed"))
	require.Eventually(t, func() bool { return gen.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	r.Close()
	r.Close()
}
