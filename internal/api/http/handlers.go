package http

import (
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/filemanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filemanager/internal/providers/filesystem"
)

// ConnectorPath is the single endpoint that dispatches on ?mode=
const ConnectorPath = "/api/filemanager"

// Version is reported by the root endpoint
const Version = "1.0.0"

type modeHandler func(c *gin.Context)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine  *filesystem.Engine
	metrics *monitoring.Metrics
	logger  *logging.Logger
	get     map[string]modeHandler
	post    map[string]modeHandler
}

// NewHandlers creates a new handler set
func NewHandlers(engine *filesystem.Engine, metrics *monitoring.Metrics) *Handlers {
	h := &Handlers{
		engine:  engine,
		metrics: metrics,
		logger:  logging.NewNop(),
	}

	h.get = map[string]modeHandler{
		"initiate":   h.Initiate,
		"getinfo":    h.GetInfo,
		"readfolder": h.ReadFolder,
		"readfile":   h.ReadFile,
		"getimage":   h.GetImage,
		"download":   h.Download,
		"summarize":  h.Summarize,
		"seekfolder": h.SeekFolder,
		"addfolder":  h.AddFolder,
		"rename":     h.Rename,
		"move":       h.Move,
		"copy":       h.Copy,
		"delete":     h.Delete,
		"extract":    h.Extract,
	}
	h.post = map[string]modeHandler{
		"upload":   h.Upload,
		"savefile": h.SaveFile,
		"extract":  h.Extract,
	}
	return h
}

// WithLogger sets the logger for server-side failures
func (h *Handlers) WithLogger(logger *logging.Logger) *Handlers {
	h.logger = logger.Named("connector")
	return h
}

// Register mounts all routes on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics)

	router.GET(ConnectorPath, h.dispatch(h.get))
	router.POST(ConnectorPath, h.dispatch(h.post))
}

func (h *Handlers) dispatch(modes map[string]modeHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("mode")
		if mode == "" {
			mode = c.PostForm("mode")
		}
		handler, ok := modes[mode]
		if !ok {
			abort(c, http.StatusBadRequest, TitleInvalidMode, mode)
			return
		}
		handler(c)
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "File Manager (Go)",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"read_only": h.engine.Config().ReadOnly,
		"metrics":   h.metrics.Snapshot(),
	})
}

// Metrics serves the Prometheus exposition
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// param reads a query or form value and aborts when it is missing
func param(c *gin.Context, name string) (string, bool) {
	value, ok := c.GetQuery(name)
	if !ok {
		value, ok = c.GetPostForm(name)
	}
	if !ok || value == "" {
		abort(c, http.StatusBadRequest, TitleMissingParam, name)
		return "", false
	}
	return value, true
}

// Initiate reports the client-relevant server settings
func (h *Handlers) Initiate(c *gin.Context) {
	cfg := h.engine.Config()
	rules := h.engine.Rules()

	respond(c, gin.H{
		"id":   "/",
		"type": "initiate",
		"attributes": gin.H{
			"config": gin.H{
				"security": gin.H{
					"readOnly":            cfg.ReadOnly,
					"allowFolderDownload": cfg.AllowFolderDownload,
					"policy":              rules.Policy(),
				},
				"upload": gin.H{
					"fileSizeLimit": cfg.UploadLimit,
				},
				"images": gin.H{
					"extensions": rules.ImageExtensions(),
				},
			},
		},
	})
}

// GetInfo handles mode=getinfo
func (h *Handlers) GetInfo(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	desc, err := h.engine.GetInfo(c.Request.Context(), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// ReadFolder handles mode=readfolder
func (h *Handlers) ReadFolder(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	list, err := h.engine.ReadFolder(c.Request.Context(), path, c.Query("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, list)
}

// ReadFile handles mode=readfile
func (h *Handlers) ReadFile(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	stream, err := h.engine.ReadFile(c.Request.Context(), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeStream(c, stream)
}

// GetImage handles mode=getimage
func (h *Handlers) GetImage(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	thumb, _ := strconv.ParseBool(c.DefaultQuery("thumbnail", "false"))

	stream, err := h.engine.GetImage(c.Request.Context(), path, thumb)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeStream(c, stream)
}

// Download handles mode=download
func (h *Handlers) Download(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	stream, err := h.engine.Download(c.Request.Context(), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeStream(c, stream)
}

// Summarize handles mode=summarize
func (h *Handlers) Summarize(c *gin.Context) {
	summary, err := h.engine.Summarize(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{
		"id":         "/",
		"type":       "summary",
		"attributes": summary,
	})
}

// SeekFolder handles mode=seekfolder
func (h *Handlers) SeekFolder(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	term, ok := param(c, "string")
	if !ok {
		return
	}
	result, err := h.engine.Search(c.Request.Context(), path, term)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, result)
}

// AddFolder handles mode=addfolder
func (h *Handlers) AddFolder(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	name, ok := param(c, "name")
	if !ok {
		return
	}
	desc, err := h.engine.AddFolder(c.Request.Context(), path, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Rename handles mode=rename
func (h *Handlers) Rename(c *gin.Context) {
	old, ok := param(c, "old")
	if !ok {
		return
	}
	name, ok := param(c, "new")
	if !ok {
		return
	}
	desc, err := h.engine.Rename(c.Request.Context(), old, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Move handles mode=move
func (h *Handlers) Move(c *gin.Context) {
	old, ok := param(c, "old")
	if !ok {
		return
	}
	target, ok := param(c, "new")
	if !ok {
		return
	}
	desc, err := h.engine.Move(c.Request.Context(), old, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Copy handles mode=copy
func (h *Handlers) Copy(c *gin.Context) {
	source, ok := param(c, "source")
	if !ok {
		return
	}
	target, ok := param(c, "target")
	if !ok {
		return
	}
	desc, err := h.engine.Copy(c.Request.Context(), source, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Delete handles mode=delete
func (h *Handlers) Delete(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	desc, err := h.engine.Delete(c.Request.Context(), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Extract handles mode=extract
func (h *Handlers) Extract(c *gin.Context) {
	source, ok := param(c, "source")
	if !ok {
		return
	}
	target, ok := param(c, "target")
	if !ok {
		return
	}
	result, err := h.engine.Extract(c.Request.Context(), source, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, result)
}

// SaveFile handles mode=savefile
func (h *Handlers) SaveFile(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	content, ok := c.GetPostForm("content")
	if !ok {
		abort(c, http.StatusBadRequest, TitleMissingParam, "content")
		return
	}
	desc, err := h.engine.SaveFile(c.Request.Context(), path, strings.NewReader(content))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, desc)
}

// Upload handles mode=upload with multipart "files"
func (h *Handlers) Upload(c *gin.Context) {
	path, ok := param(c, "path")
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abort(c, http.StatusBadRequest, TitleInvalidRequest, err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abort(c, http.StatusBadRequest, TitleMissingParam, "files")
		return
	}

	files := make([]filesystem.UploadFile, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			closeAll(files)
			h.fail(c, err)
			return
		}
		files = append(files, filesystem.UploadFile{Name: fh.Filename, Size: fh.Size, Body: file})
	}
	defer closeAll(files)

	list, err := h.engine.Upload(c.Request.Context(), path, files)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, list)
}

func closeAll(files []filesystem.UploadFile) {
	for _, f := range files {
		if file, ok := f.Body.(multipart.File); ok {
			file.Close()
		}
	}
}

// writeStream copies an engine stream to the response with its hints
func writeStream(c *gin.Context, stream *filesystem.Stream) {
	defer stream.Body.Close()

	disposition := mime.FormatMediaType(string(stream.Disposition), map[string]string{"filename": stream.Name})
	if disposition == "" {
		disposition = string(stream.Disposition)
	}
	c.DataFromReader(http.StatusOK, stream.Size, stream.ContentType, stream.Body, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
	})
}
