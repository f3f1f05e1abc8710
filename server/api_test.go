package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/pipeline"
)

type testClient struct {
	t   *testing.T
	app *fiber.App
}

func newTestClient(t *testing.T, limit int, seed bool) *testClient {
	logger := log.New(io.Discard)
	return &testClient{t: t, app: newApp(newSessions(limit, seed, logger), logger)}
}

func (tc *testClient) do(method, path, body string, out any) int {
	tc.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.app.Test(req)
	require.NoError(tc.t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(tc.t, err)
		if s, ok := out.(*string); ok {
			*s = string(raw)
		} else {
			require.NoError(tc.t, json.Unmarshal(raw, out), "body: %s", raw)
		}
	}
	return resp.StatusCode
}

func (tc *testClient) newSession() string {
	tc.t.Helper()
	var created struct {
		ID string `json:"id"`
	}
	require.Equal(tc.t, http.StatusCreated, tc.do(http.MethodPost, "/sessions", "", &created))
	require.NotEmpty(tc.t, created.ID)
	return created.ID
}

func TestSessionLifecycle(t *testing.T) {
	tc := newTestClient(t, 1, false)
	id := tc.newSession()

	var snap pipeline.Snapshot
	assert.Equal(t, http.StatusOK, tc.do(http.MethodGet, "/sessions/"+id, "", &snap))
	assert.Empty(t, snap.Nodes)

	var errBody map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, tc.do(http.MethodPost, "/sessions", "", &errBody))

	assert.Equal(t, http.StatusNoContent, tc.do(http.MethodDelete, "/sessions/"+id, "", nil))
	assert.Equal(t, http.StatusNotFound, tc.do(http.MethodGet, "/sessions/"+id, "", &errBody))
	assert.Contains(t, errBody["error"], "session not found")
}

func TestBuildAndSubmit(t *testing.T) {
	tc := newTestClient(t, 10, false)
	id := tc.newSession()
	base := "/sessions/" + id

	var report map[string]any
	assert.Equal(t, http.StatusUnprocessableEntity, tc.do(http.MethodPost, base+"/submit", "", &report))
	assert.Contains(t, report["error"], "no nodes")

	var in, llm, out pipeline.Node
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/nodes", `{"type":"input","position":{"x":1,"y":2}}`, &in))
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/drop", `{"payload":"{\"nodeType\":\"llm\"}","position":{"x":3,"y":4}}`, &llm))
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/nodes", `{"type":"output"}`, &out))
	assert.Equal(t, "input-1", in.ID)
	assert.Equal(t, "llm-1", llm.ID)
	assert.Equal(t, pipeline.Position{X: 3, Y: 4}, llm.Position)

	var e pipeline.Edge
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/edges", `{"source":"input-1","target":"llm-1"}`, &e))
	assert.True(t, e.Animated)
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/edges", `{"source":"llm-1","target":"output-1"}`, &e))

	require.Equal(t, http.StatusOK, tc.do(http.MethodPost, base+"/submit", "", &report))
	assert.Equal(t, true, report["is_dag"])
	assert.Equal(t, float64(3), report["num_nodes"])
	assert.Equal(t, float64(2), report["num_edges"])
	assert.Equal(t, "Valid Pipeline", report["title"])

	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/edges", `{"source":"output-1","target":"input-1"}`, &e))
	report = nil
	require.Equal(t, http.StatusOK, tc.do(http.MethodPost, base+"/submit", "", &report))
	assert.Equal(t, false, report["is_dag"])
	assert.Contains(t, report["summary"], "contains cycle")

	var snap pipeline.Snapshot
	require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base, "", &snap))
	assert.Len(t, snap.Edges, 3, "cyclic graphs are kept")

	var dot string
	require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base+"/dot", "", &dot))
	assert.Contains(t, dot, "digraph pipeline")

	require.Equal(t, http.StatusOK, tc.do(http.MethodPost, base+"/clear", "", &snap))
	assert.Empty(t, snap.Nodes)
	assert.Empty(t, snap.Edges)
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/nodes", `{"type":"input"}`, &in))
	assert.Equal(t, "input-1", in.ID)
}

func TestUpdateField(t *testing.T) {
	tc := newTestClient(t, 10, true)
	base := "/sessions/" + tc.newSession()

	assert.Equal(t, http.StatusNoContent, tc.do(http.MethodPut, base+"/nodes/llm-1/data/temperature", `{"value":0.1}`, nil))

	var snap pipeline.Snapshot
	require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base, "", &snap))
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, 0.1, snap.Nodes[1].Data.(pipeline.LLMData).Temperature)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPut, base+"/nodes/llm-1/data/temperature", `{"value":7}`, &errBody))
	assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPut, base+"/nodes/llm-1/data/color", `{"value":"red"}`, &errBody))
	assert.Equal(t, http.StatusNotFound, tc.do(http.MethodPut, base+"/nodes/llm-9/data/label", `{"value":"x"}`, &errBody))
}

func TestRejectedInput(t *testing.T) {
	tc := newTestClient(t, 10, false)
	base := "/sessions/" + tc.newSession()

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPost, base+"/drop", `{"payload":"not json"}`, &errBody))
	assert.Contains(t, errBody["error"], "invalid drag payload")
	assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPost, base+"/drop", `{"payload":"{}"}`, &errBody))
	assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPost, base+"/nodes", `{"type":"image"}`, &errBody))
	assert.Equal(t, http.StatusNotFound, tc.do(http.MethodPost, base+"/edges", `{"source":"a","target":"b"}`, &errBody))

	var snap pipeline.Snapshot
	require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base, "", &snap))
	assert.Empty(t, snap.Nodes)
	assert.Empty(t, snap.Edges)
}

func TestChanges(t *testing.T) {
	tc := newTestClient(t, 10, true)
	base := "/sessions/" + tc.newSession()

	var snap pipeline.Snapshot
	require.Equal(t, http.StatusOK, tc.do(http.MethodPatch, base+"/nodes",
		`[{"type":"position","id":"llm-1","position":{"x":9,"y":9},"dragging":true},{"type":"remove","id":"output-1"}]`, &snap))
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, pipeline.Position{X: 9, Y: 9}, snap.Nodes[1].Position)
	assert.Len(t, snap.Edges, 2)

	require.Equal(t, http.StatusOK, tc.do(http.MethodPatch, base+"/edges", `[{"type":"remove","id":"e-llm-1-output-1"}]`, &snap))
	assert.Len(t, snap.Edges, 1)
}

func TestChangesRejected(t *testing.T) {
	tc := newTestClient(t, 10, true)
	base := "/sessions/" + tc.newSession()

	var before pipeline.Snapshot
	require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base, "", &before))

	testCases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{
			name:   "add existing node id",
			path:   "/nodes",
			body:   `[{"type":"add","item":{"id":"llm-1","type":"text","position":{"x":0,"y":0},"data":{"label":"Twin"}}}]`,
			status: http.StatusConflict,
		},
		{
			name: "add same node id twice",
			path: "/nodes",
			body: `[{"type":"add","item":{"id":"text-5","type":"text","position":{"x":0,"y":0},"data":{"label":"A"}}},` +
				`{"type":"add","item":{"id":"text-5","type":"text","position":{"x":0,"y":0},"data":{"label":"B"}}}]`,
			status: http.StatusConflict,
		},
		{
			name:   "add empty label",
			path:   "/nodes",
			body:   `[{"type":"add","item":{"id":"text-5","type":"text","position":{"x":0,"y":0},"data":{"label":" "}}}]`,
			status: http.StatusBadRequest,
		},
		{
			name:   "replace with bad temperature",
			path:   "/nodes",
			body:   `[{"type":"replace","id":"llm-1","item":{"id":"llm-1","type":"llm","position":{"x":0,"y":0},"data":{"label":"Hot","model":"gpt-4","temperature":9}}}]`,
			status: http.StatusBadRequest,
		},
		{
			name:   "add edge to unknown node",
			path:   "/edges",
			body:   `[{"type":"add","item":{"id":"e-x","source":"input-1","target":"ghost"}}]`,
			status: http.StatusBadRequest,
		},
		{
			name:   "replace edge with unknown source",
			path:   "/edges",
			body:   `[{"type":"replace","id":"e-input-1-llm-1","item":{"source":"ghost","target":"llm-1"}}]`,
			status: http.StatusBadRequest,
		},
		{
			name:   "add existing edge id",
			path:   "/edges",
			body:   `[{"type":"add","item":{"id":"e-input-1-llm-1","source":"input-1","target":"llm-1"}}]`,
			status: http.StatusConflict,
		},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			var body map[string]any
			assert.Equal(t, c.status, tc.do(http.MethodPatch, base+c.path, c.body, &body))
			assert.NotEmpty(t, body["error"])

			var after pipeline.Snapshot
			require.Equal(t, http.StatusOK, tc.do(http.MethodGet, base, "", &after))
			assert.Equal(t, before, after, "rejected batches do not mutate")
		})
	}

	assert.Equal(t, http.StatusNoContent, tc.do(http.MethodPut, base+"/nodes/llm-1/data/temperature", `{"value":0.3}`, nil))
}

func TestCreateNodeScatter(t *testing.T) {
	tc := newTestClient(t, 10, false)
	base := "/sessions/" + tc.newSession()

	for i := 0; i < 5; i++ {
		var n pipeline.Node
		require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/nodes", `{"type":"text"}`, &n))
		assert.GreaterOrEqual(t, n.Position.X, 300.0)
		assert.Less(t, n.Position.X, 400.0)
		assert.GreaterOrEqual(t, n.Position.Y, 200.0)
		assert.Less(t, n.Position.Y, 300.0)
	}

	var n pipeline.Node
	require.Equal(t, http.StatusCreated, tc.do(http.MethodPost, base+"/nodes", `{"type":"text","position":{"x":0,"y":0}}`, &n))
	assert.Equal(t, pipeline.Position{}, n.Position, "an explicit origin is kept")
}

func TestParsePipeline(t *testing.T) {
	tc := newTestClient(t, 10, false)

	body := `{
		"nodes": [
			{"id":"a","type":"text","position":{"x":0,"y":0},"data":{"label":"A","content":""}},
			{"id":"b","type":"text","position":{"x":0,"y":0},"data":{"label":"B","content":""}}
		],
		"edges": [{"id":"1","source":"a","target":"b"},{"id":"2","source":"b","target":"a"}]
	}`
	var report map[string]any
	require.Equal(t, http.StatusOK, tc.do(http.MethodPost, "/pipelines/parse", body, &report))
	assert.Equal(t, false, report["is_dag"])
	assert.Equal(t, []any{"a", "b"}, report["cycle"])

	assert.Equal(t, http.StatusUnprocessableEntity, tc.do(http.MethodPost, "/pipelines/parse", `{"nodes":[],"edges":[]}`, &report))
}
