package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/composer"
	"guideline-rag/internal/config"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/metrics"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.EmbedLLM.Provider = config.ProviderHashing
	loader := embedding.NewLoader(func(context.Context) (*embedding.Embedder, error) {
		return embedding.NewEmbedder(embedding.NewHashingEmbedder(384), "hashing", 8, 16)
	})
	return New(cfg, loader, composer.Extractive{}, metrics.New())
}

func buildPDF(t *testing.T, text string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	if text != "" {
		doc.Cell(40, 10, text)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, httptest.NewRequest(http.MethodPost, "/sessions", http.NoBody))
	require.Equal(t, http.StatusCreated, w.Code)
	id, ok := decode(t, w)["id"].(string)
	require.True(t, ok)
	return id
}

// files maps file name to content.
func upload(t *testing.T, s *Server, id string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile(filesField, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, s, req)
}

func ask(t *testing.T, s *Server, id, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return do(t, s, req)
}

func TestServer_Sessions(t *testing.T) {
	t.Run("ShouldReportHealth", func(t *testing.T) {
		s := setupServer(t)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode(t, w)["status"])
	})

	t.Run("ShouldStartAwaitingInput", func(t *testing.T) {
		s := setupServer(t)
		id := createSession(t, s)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/sessions/"+id, http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "empty", body["state"])
		assert.Equal(t, true, body["awaiting_input"])

		w = ask(t, s, id, "/query", map[string]any{"query": "brand", "k": 3})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("ShouldStayEmptyWhenNoFilesUploaded", func(t *testing.T) {
		s := setupServer(t)
		id := createSession(t, s)
		w := upload(t, s, id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["awaiting_input"])
	})

	t.Run("ShouldRejectNonMultipartUpload", func(t *testing.T) {
		s := setupServer(t)
		id := createSession(t, s)
		w := ask(t, s, id, "/documents", map[string]any{"files": "A.pdf"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ShouldReturn404ForUnknownSession", func(t *testing.T) {
		s := setupServer(t)
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/sessions/nope", http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ShouldDeleteSession", func(t *testing.T) {
		s := setupServer(t)
		id := createSession(t, s)
		w := do(t, s, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, http.NoBody))
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = do(t, s, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_Query(t *testing.T) {
	s := setupServer(t)
	id := createSession(t, s)
	w := upload(t, s, id, map[string][]byte{
		"A.pdf": buildPDF(t, "brand color is blue"),
		"B.pdf": buildPDF(t, "logo must have clear space"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "ready", body["state"])
	assert.InDelta(t, 2, body["chunks"], 1e-9)

	t.Run("ShouldAnswerWithCitations", func(t *testing.T) {
		w := ask(t, s, id, "/query", map[string]any{"query": "what color is the brand", "k": 3})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res queryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res.Citations, 2)
		assert.True(t, strings.HasPrefix(res.Citations[0], "A.pdf, p.1 (similarity="), res.Citations[0])
		assert.True(t, strings.HasPrefix(res.Answer, "[A.pdf p.1] brand color is blue"), res.Answer)
		assert.False(t, res.Synthesized)
		assert.GreaterOrEqual(t, res.LatencyMS, int64(0))
		assert.Empty(t, res.HTML)
	})

	t.Run("ShouldUseConfiguredKWhenOmitted", func(t *testing.T) {
		w := ask(t, s, id, "/query", map[string]any{"query": "logo"})
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ShouldRenderHTMLOnRequest", func(t *testing.T) {
		w := ask(t, s, id, "/query?format=html", map[string]any{"query": "logo", "k": 3})
		require.Equal(t, http.StatusOK, w.Code)
		var res queryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Contains(t, res.HTML, "<h2>Answer</h2>")
	})

	t.Run("ShouldRejectBadRequests", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ask(t, s, id, "/query", map[string]any{"query": "logo", "k": 11}).Code)
		assert.Equal(t, http.StatusBadRequest, ask(t, s, id, "/query", map[string]any{"query": "logo", "k": 2}).Code)
		assert.Equal(t, http.StatusBadRequest, ask(t, s, id, "/query", map[string]any{"query": "  ", "k": 3}).Code)
	})

	t.Run("ShouldKeepSessionsIndependent", func(t *testing.T) {
		other := createSession(t, s)
		w := upload(t, s, other, map[string][]byte{"C.pdf": buildPDF(t, "typography uses sans serif")})
		require.Equal(t, http.StatusOK, w.Code)

		w = ask(t, s, other, "/query", map[string]any{"query": "what color is the brand", "k": 3})
		require.Equal(t, http.StatusOK, w.Code)
		var res queryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res.Hits, 1)
		assert.Equal(t, "C.pdf", res.Hits[0].Meta.SourceFilename)
	})

	t.Run("ShouldReportEmptyCorpus", func(t *testing.T) {
		w := upload(t, s, id, map[string][]byte{"blank.pdf": buildPDF(t, "")})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		w = ask(t, s, id, "/query", map[string]any{"query": "logo", "k": 3})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("ShouldExposeMetrics", func(t *testing.T) {
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "guideline_rag_index_builds_total")
	})
}

func TestGinMode(t *testing.T) {
	cases := []struct {
		name    string
		current string
		level   zerolog.Level
		want    string
	}{
		{name: "ShouldUseReleaseModeAtInfoLevel", current: gin.DebugMode, level: zerolog.InfoLevel, want: gin.ReleaseMode},
		{name: "ShouldKeepDebugModeAtDebugLevel", current: gin.DebugMode, level: zerolog.DebugLevel, want: gin.DebugMode},
		{name: "ShouldKeepDebugModeAtTraceLevel", current: gin.DebugMode, level: zerolog.TraceLevel, want: gin.DebugMode},
		{name: "ShouldKeepTestMode", current: gin.TestMode, level: zerolog.InfoLevel, want: gin.TestMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ginMode(tc.current, tc.level))
		})
	}
}
