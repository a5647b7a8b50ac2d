package adminapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streamkit/streamkit/internal/adminapi"
	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
	"github.com/streamkit/streamkit/internal/oneshotengine"
)

func testRegistry() *node.MapRegistry {
	r := node.NewMapRegistry()
	builtin.Register(r)
	return r
}

func testServer(t *testing.T) *adminapi.Server {
	t.Helper()
	r := testRegistry()
	dyn := dynamicengine.NewEngine(r, dynamicengine.DefaultProfile(), 4, time.Second, zerolog.Nop())
	one := oneshotengine.NewEngine(r, oneshotengine.DefaultProfile(), 4, zerolog.Nop())
	return &adminapi.Server{
		Dynamic:         dyn,
		Oneshot:         one,
		Registry:        r,
		IsKindAllowed:   nil,
		Logger:          zerolog.Nop(),
		OneshotDeadline: 5 * time.Second,
	}
}

func dynamicPipelineYAML(t *testing.T, path string) string {
	t.Helper()
	return "mode: dynamic\nnodes:\n  src:\n    kind: file_reader\n    params:\n      path: " + path + "\n  snk:\n    kind: http_output\n    needs: src\n"
}

func TestHandleCreateSessionThenGetPipeline(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	path := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	body, err := json.Marshal(map[string]string{
		"pipeline": dynamicPipelineYAML(t, path),
		"name":     "my-session",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		SessionID string `json:"session_id"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "my-session", created.SessionID)
	require.Equal(t, "my-session", created.Name)
	require.NotEmpty(t, created.CreatedAt)

	getReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID+"/pipeline", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var pipeline struct {
		SessionID string `json:"session_id"`
		Nodes     []struct {
			Label string `json:"label"`
			Kind  string `json:"kind"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &pipeline))
	require.Equal(t, created.SessionID, pipeline.SessionID)
	require.Len(t, pipeline.Nodes, 2)
}

func TestHandleGetPipelineUnknownSessionIs404(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/sessions/does-not-exist/pipeline", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateSessionBadPipelineYAMLIs400(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	body, err := json.Marshal(map[string]string{"pipeline": "not: [valid"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDestroySession(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	path := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))
	pipeline := dynamicPipelineYAML(t, path)

	body, err := json.Marshal(map[string]string{"pipeline": pipeline, "name": "to-destroy"})
	require.NoError(t, err)
	createReq := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	destroyReq := httptest.NewRequest(http.MethodDelete, "/sessions/to-destroy", nil)
	destroyRec := httptest.NewRecorder()
	router.ServeHTTP(destroyRec, destroyReq)
	require.Equal(t, http.StatusOK, destroyRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/sessions/to-destroy/pipeline", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestHandleProcessStreamsMediaThroughPipeline(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	pipeline := "mode: oneshot\nnodes:\n  src:\n    kind: http_input\n  snk:\n    kind: http_output\n    needs: src\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	pipelinePart, err := mw.CreateFormField("pipeline")
	require.NoError(t, err)
	_, err = pipelinePart.Write([]byte(pipeline))
	require.NoError(t, err)

	mediaPart, err := mw.CreateFormFile("media", "clip.bin")
	require.NoError(t, err)
	_, err = mediaPart.Write([]byte("hello streamkit"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/oneshot", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello streamkit", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestHandleProcessNotMultipartIs400(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/oneshot", bytes.NewReader([]byte("not multipart")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterReturnsNotImplementedWhenEngineAbsent(t *testing.T) {
	srv := &adminapi.Server{Logger: zerolog.Nop()}
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/oneshot", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
