package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/scenario"
	"github.com/abhisek/lingoflow/internal/store"
)

type stubGen struct {
	mu        sync.Mutex
	reached   bool
	scenarios []store.Scenario
}

func (g *stubGen) ListModels(context.Context) []llm.ModelInfo {
	return []llm.ModelInfo{{Name: "gemma3:4b", ParameterSize: "4.3B"}}
}

func (g *stubGen) GenerateScenarios(context.Context, string, string, string, int) []store.Scenario {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scenarios
}

func (g *stubGen) ChatReply(context.Context, string, string, string, string, string, []store.Message) string {
	return "Irasshaimase!"
}

func (g *stubGen) EvaluateGoal(context.Context, string, string, []store.Message) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reached
}

func (g *stubGen) GenerateHint(context.Context, string, string, string, string, string, []store.Message) string {
	return "Say hello first."
}

func (g *stubGen) GenerateSummary(context.Context, string, string, string, string, []store.Message) (string, error) {
	return "Well done.", nil
}

type testServer struct {
	srv   *Server
	store *store.Store
	gen   *stubGen
}

func newTestServer(t *testing.T, clipartDir string) *testServer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	gen := &stubGen{}
	assets, err := scenario.NewAssets(clipartDir)
	require.NoError(t, err)
	catalog := scenario.NewCatalog(s.ScenarioRepo(), s.SettingsRepo(), gen, assets, 5, nil)
	_, err = catalog.Add(context.Background(), []store.Scenario{
		{ID: "s1", Setting: "cafe", Goal: "order coffee", Description: "A small cafe"},
	})
	require.NoError(t, err)

	mgr := conversation.NewManager(s.ConversationRepo(), nil)
	svc := conversation.NewService(s.SettingsRepo(), catalog, mgr, gen, nil, nil)

	srv := New(Deps{Settings: s.SettingsRepo(), Catalog: catalog, Conversations: svc, Generation: gen}, nil)
	return &testServer{srv: srv, store: s, gen: gen}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t, "")

	rec, body := ts.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Japanese", body["practice_language"])
	assert.Equal(t, float64(0), body["score"])

	rec, body = ts.do(t, http.MethodPost, "/api/settings", `{"theme":"dark","model":"","practice_language":"Spanish"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	_, body = ts.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, "dark", body["theme"])
	assert.Equal(t, "Spanish", body["practice_language"])
	assert.Equal(t, store.DefaultModel, body["model"], "empty fields are left untouched")

	rec, _ = ts.do(t, http.MethodPost, "/api/settings", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsAndScenarios(t *testing.T) {
	ts := newTestServer(t, "")

	rec, body := ts.do(t, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	models := body["models"].([]any)
	require.Len(t, models, 1)
	assert.Equal(t, "4.3B", models[0].(map[string]any)["parameter_size"])

	rec, body = ts.do(t, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["scenarios"], 1)

	rec, body = ts.do(t, http.MethodPost, "/api/scenarios/generate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "nothing generated")
	assert.NotEmpty(t, body["error"])

	ts.gen.scenarios = []store.Scenario{{ID: "a", Goal: "g", Clipart: "missing.png"}, {ID: "b", Goal: "g"}}
	rec, _ = ts.do(t, http.MethodPost, "/api/scenarios/generate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = ts.do(t, http.MethodGet, "/api/scenarios", "")
	list := body["scenarios"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, store.DefaultClipart, list[0].(map[string]any)["clipart"])
}

func TestChatTurn(t *testing.T) {
	ts := newTestServer(t, "")

	rec, body := ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"s1","message":"I'd like a coffee"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Irasshaimase!", body["bot_message"])
	assert.Equal(t, "PENDING", body["status"])
	assert.NotContains(t, body, "summary")
	assert.NotZero(t, body["history_id"])

	rec, _ = ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"nope","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, b := range []string{`{"scenario_id":"s1","message":"  "}`, `{"message":"hi"}`, ``} {
		rec, _ = ts.do(t, http.MethodPost, "/api/chat/turn", b)
		assert.Equal(t, http.StatusBadRequest, rec.Code, b)
	}
}

func TestChatTurn_ReachedThenHistory(t *testing.T) {
	ts := newTestServer(t, "")
	ts.gen.reached = true

	rec, body := ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"s1","message":"Kohii o kudasai"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REACHED", body["status"])
	assert.Equal(t, "Well done.", body["summary"])
	id := int64(body["history_id"].(float64))

	_, body = ts.do(t, http.MethodGet, "/api/scenarios", "")
	assert.Empty(t, body["scenarios"])

	_, body = ts.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, float64(1), body["score"])

	rec, body = ts.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["history"], 1)

	path := "/api/history/" + strconv.FormatInt(id, 10)
	rec, body = ts.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", body["scenario_id"])
	assert.Len(t, body["conversation"], 2)

	rec, body = ts.do(t, http.MethodGet, path+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Well done.", body["summary"])

	rec, _ = ts.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = ts.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body = ts.do(t, http.MethodGet, "/api/history", "")
	assert.Empty(t, body["history"])
}

func TestHistory_BadIDAndClear(t *testing.T) {
	ts := newTestServer(t, "")

	rec, _ := ts.do(t, http.MethodGet, "/api/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/api/history/99/summary", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := ts.do(t, http.MethodDelete, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["deleted"])
}

func TestSummary_LiveConversationIsNull(t *testing.T) {
	ts := newTestServer(t, "")

	_, body := ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"s1","message":"hi"}`)
	id := int64(body["history_id"].(float64))

	rec, body := ts.do(t, http.MethodGet, "/api/history/"+strconv.FormatInt(id, 10)+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "summary")
	assert.Nil(t, body["summary"])
}

func TestAbandonAndHint(t *testing.T) {
	ts := newTestServer(t, "")

	rec, body := ts.do(t, http.MethodPost, "/api/chat/abandon", `{"scenario_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = ts.do(t, http.MethodPost, "/api/chat/hint", `{"scenario_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Say hello first.", body["hint"])

	rec, _ = ts.do(t, http.MethodPost, "/api/chat/hint", `{"scenario_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/chat/abandon", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetireScenario(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := context.Background()

	rec, _ := ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"s1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := ts.do(t, http.MethodDelete, "/api/scenarios/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	_, err := ts.store.ScenarioRepo().Get(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = ts.store.ConversationRepo().FindActive(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound, "live conversation goes with the scenario")

	rec, _ = ts.do(t, http.MethodDelete, "/api/scenarios/s1", "")
	assert.Equal(t, http.StatusOK, rec.Code, "retiring twice is a no-op")

	rec, _ = ts.do(t, http.MethodPost, "/api/chat/turn", `{"scenario_id":"s1","message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthMetricsAndClipart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cafe.png"), []byte("PNG"), 0o600))
	ts := newTestServer(t, dir)

	rec, body := ts.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec, _ = ts.do(t, http.MethodGet, "/api/clipart/cafe.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNG", rec.Body.String())
}
