package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/filemanager/internal/domain/restriction"
	"github.com/GriffinCanCode/filemanager/internal/domain/thumbnail"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filemanager/internal/providers/filesystem"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	root   string
}

func newTestServer(t *testing.T, cfg filesystem.Config) *testServer {
	t.Helper()
	base := t.TempDir()

	resolver, err := paths.NewResolver(filepath.Join(base, "files"))
	require.NoError(t, err)
	rules, err := restriction.New(restriction.Config{
		Rules: []restriction.Rule{
			{Pattern: "*.exe", Target: restriction.TargetName, Mode: restriction.ModeDeny},
		},
		ImageExtensions: []string{"png", "jpg"},
	})
	require.NoError(t, err)
	thumbs, err := thumbnail.New(thumbnail.Config{
		Root:      filepath.Join(base, "thumbs"),
		MaxWidth:  16,
		MaxHeight: 16,
		Persist:   true,
	}, resolver, rules.IsImage)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	engine := filesystem.NewEngine(cfg, resolver, rules, thumbs).WithMetrics(metrics)

	router := gin.New()
	NewHandlers(engine, metrics).Register(router)
	return &testServer{router: router, root: resolver.Root()}
}

func (s *testServer) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func (s *testServer) get(t *testing.T, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, ConnectorPath+"?"+params.Encode(), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) post(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorObject {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.Len(t, body.Errors, 1)
	return body.Errors[0]
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Data
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind fserr.Kind
		want int
	}{
		{fserr.KindInvalidPath, http.StatusBadRequest},
		{fserr.KindForbiddenName, http.StatusBadRequest},
		{fserr.KindDirectoryRequired, http.StatusBadRequest},
		{fserr.KindForbidden, http.StatusForbidden},
		{fserr.KindNotFound, http.StatusNotFound},
		{fserr.KindAlreadyExists, http.StatusConflict},
		{fserr.KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{fserr.KindServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestUnknownModeAndMissingParameter(t *testing.T) {
	s := newTestServer(t, filesystem.Config{})

	w := s.get(t, url.Values{"mode": {"explode"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, TitleInvalidMode, e.Title)
	assert.Equal(t, "400", e.Code)
	assert.Equal(t, []string{"explode"}, e.Meta.Arguments)

	w = s.get(t, url.Values{"mode": {"getinfo"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e = decodeError(t, w)
	assert.Equal(t, TitleMissingParam, e.Title)
	assert.Equal(t, []string{"path"}, e.Meta.Arguments)

	// Uploads are POST only
	w = s.get(t, url.Values{"mode": {"upload"}, "path": {"/"}})
	assert.Equal(t, TitleInvalidMode, decodeError(t, w).Title)
}

func TestEngineErrorsUseEnvelope(t *testing.T) {
	s := newTestServer(t, filesystem.Config{})
	s.write(t, "docs/a.txt", "a")

	w := s.get(t, url.Values{"mode": {"getinfo"}, "path": {"/missing.txt"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, string(fserr.KindNotFound), e.Title)
	assert.Equal(t, "404", e.Code)
	assert.Equal(t, []string{"/missing.txt"}, e.Meta.Arguments)

	w = s.get(t, url.Values{"mode": {"getinfo"}, "path": {"/../etc/passwd"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(fserr.KindInvalidPath), decodeError(t, w).Title)

	w = s.get(t, url.Values{"mode": {"addfolder"}, "path": {"/"}, "name": {"docs"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(fserr.KindAlreadyExists), decodeError(t, w).Title)
}

func TestInitiate(t *testing.T) {
	s := newTestServer(t, filesystem.Config{UploadLimit: 1024, AllowFolderDownload: true})

	w := s.get(t, url.Values{"mode": {"initiate"}})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Type       string `json:"type"`
			Attributes struct {
				Config struct {
					Security struct {
						ReadOnly            bool   `json:"readOnly"`
						AllowFolderDownload bool   `json:"allowFolderDownload"`
						Policy              string `json:"policy"`
					} `json:"security"`
					Upload struct {
						FileSizeLimit int64 `json:"fileSizeLimit"`
					} `json:"upload"`
					Images struct {
						Extensions []string `json:"extensions"`
					} `json:"images"`
				} `json:"config"`
			} `json:"attributes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	cfg := body.Data.Attributes.Config
	assert.Equal(t, "initiate", body.Data.Type)
	assert.False(t, cfg.Security.ReadOnly)
	assert.True(t, cfg.Security.AllowFolderDownload)
	assert.Equal(t, "allow", cfg.Security.Policy)
	assert.Equal(t, int64(1024), cfg.Upload.FileSizeLimit)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Images.Extensions)
}

func TestReadFolderAndMutations(t *testing.T) {
	s := newTestServer(t, filesystem.Config{})
	s.write(t, "docs/b.txt", "b")
	s.write(t, "a.txt", "a")

	w := s.get(t, url.Values{"mode": {"readfolder"}, "path": {"/"}})
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[[]filesystem.FileDescriptor](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "/docs/", list[0].ID)
	assert.Equal(t, "/a.txt", list[1].ID)

	w = s.get(t, url.Values{"mode": {"rename"}, "old": {"/a.txt"}, "new": {"c.txt"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/c.txt", decodeData[filesystem.FileDescriptor](t, w).ID)

	w = s.get(t, url.Values{"mode": {"move"}, "old": {"/c.txt"}, "new": {"/docs"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/docs/c.txt", decodeData[filesystem.FileDescriptor](t, w).ID)

	w = s.get(t, url.Values{"mode": {"copy"}, "source": {"/docs/c.txt"}, "target": {"/"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/c.txt", decodeData[filesystem.FileDescriptor](t, w).ID)

	w = s.get(t, url.Values{"mode": {"seekfolder"}, "path": {"/"}, "string": {"C"}})
	require.Equal(t, http.StatusOK, w.Code)
	found := decodeData[filesystem.SearchResult](t, w)
	require.Len(t, found.Matches, 2)
	assert.Equal(t, "/c.txt", found.Matches[0].ID)
	assert.Equal(t, "/docs/c.txt", found.Matches[1].ID)

	w = s.get(t, url.Values{"mode": {"delete"}, "path": {"/docs"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/docs/", decodeData[filesystem.FileDescriptor](t, w).ID)
	assert.NoDirExists(t, filepath.Join(s.root, "docs"))

	w = s.get(t, url.Values{"mode": {"summarize"}})
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Data struct {
			Attributes filesystem.Summary `json:"attributes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, filesystem.Summary{Files: 1, Folders: 0, Size: 1}, summary.Data.Attributes)
}

func multipartUpload(t *testing.T, dir string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("path", dir))
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, ConnectorPath+"?mode=upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, filesystem.Config{UploadLimit: 64})
	s.write(t, "docs/keep.txt", "keep")

	t.Run("stores files", func(t *testing.T) {
		w := s.post(t, multipartUpload(t, "/docs", map[string]string{"hello.txt": "hello world"}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		list := decodeData[[]filesystem.FileDescriptor](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, "/docs/hello.txt", list[0].ID)

		data, err := os.ReadFile(filepath.Join(s.root, "docs", "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))
	})

	t.Run("restricted name", func(t *testing.T) {
		w := s.post(t, multipartUpload(t, "/docs", map[string]string{"tool.exe": "MZ"}))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, string(fserr.KindForbidden), decodeError(t, w).Title)
	})

	t.Run("too large", func(t *testing.T) {
		w := s.post(t, multipartUpload(t, "/docs", map[string]string{"big.txt": strings.Repeat("x", 100)}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, string(fserr.KindPayloadTooLarge), decodeError(t, w).Title)
		assert.NoFileExists(t, filepath.Join(s.root, "docs", "big.txt"))
	})

	t.Run("no files", func(t *testing.T) {
		w := s.post(t, multipartUpload(t, "/docs", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		e := decodeError(t, w)
		assert.Equal(t, TitleMissingParam, e.Title)
		assert.Equal(t, []string{"files"}, e.Meta.Arguments)
	})
}

func TestSaveFile(t *testing.T) {
	s := newTestServer(t, filesystem.Config{UploadLimit: 1024})
	s.write(t, "notes.txt", "old")

	form := url.Values{"mode": {"savefile"}, "path": {"/notes.txt"}, "content": {"new text"}}
	req := httptest.NewRequest(http.MethodPost, ConnectorPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := s.post(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/notes.txt", decodeData[filesystem.FileDescriptor](t, w).ID)

	data, err := os.ReadFile(filepath.Join(s.root, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new text", string(data))
}

func TestStreams(t *testing.T) {
	s := newTestServer(t, filesystem.Config{AllowFolderDownload: true})
	s.write(t, "docs/report.txt", "quarterly numbers")

	t.Run("readfile is inline", func(t *testing.T) {
		w := s.get(t, url.Values{"mode": {"readfile"}, "path": {"/docs/report.txt"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "quarterly numbers", w.Body.String())
		assert.Equal(t, "inline; filename=report.txt", w.Header().Get("Content-Disposition"))
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "17", w.Header().Get("Content-Length"))
	})

	t.Run("download file is attachment", func(t *testing.T) {
		w := s.get(t, url.Values{"mode": {"download"}, "path": {"/docs/report.txt"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "attachment; filename=report.txt", w.Header().Get("Content-Disposition"))
	})

	t.Run("download folder is zip", func(t *testing.T) {
		w := s.get(t, url.Values{"mode": {"download"}, "path": {"/docs"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=docs.zip", w.Header().Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})

	t.Run("getimage rejects non-image", func(t *testing.T) {
		w := s.get(t, url.Values{"mode": {"getimage"}, "path": {"/docs/report.txt"}})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestReadOnlyRejectsMutations(t *testing.T) {
	s := newTestServer(t, filesystem.Config{ReadOnly: true})
	s.write(t, "a.txt", "a")

	w := s.get(t, url.Values{"mode": {"delete"}, "path": {"/a.txt"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.FileExists(t, filepath.Join(s.root, "a.txt"))
}

func TestServiceEndpoints(t *testing.T) {
	s := newTestServer(t, filesystem.Config{})

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)
}
