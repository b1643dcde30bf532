package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carstage/internal/backgrounds"
	"carstage/internal/blob"
	"carstage/internal/jobs"
	"carstage/internal/models"
	"carstage/internal/render"
	"carstage/internal/storage"
)

const (
	thumbWidth  = 900
	thumbHeight = 560
	previewMax  = 1200
)

var errNotReady = errors.New("image not ready")

// Store is the slice of the state store the HTTP layer touches directly;
// everything job-related goes through the orchestrator.
type Store interface {
	UpsertClient(ctx context.Context, token string) error
	Paid(ctx context.Context, token string) bool
	ImageByID(ctx context.Context, token string, id uuid.UUID) (*models.Image, error)
}

type Server struct {
	cfg     *models.Config
	router  *gin.Engine
	store   Store
	blobs   blob.Store
	orch    *jobs.Orchestrator
	catalog *backgrounds.Catalog
	srv     *http.Server
}

func NewServer(cfg *models.Config, store Store, blobs blob.Store, orch *jobs.Orchestrator, catalog *backgrounds.Catalog) *Server {
	r := gin.Default()

	s := &Server{cfg: cfg, router: r, store: store, blobs: blobs, orch: orch, catalog: catalog}

	api := r.Group("/api")
	api.POST("/client/register", s.handleRegister)
	api.GET("/me", s.handleMe)
	api.GET("/backgrounds", s.handleBackgrounds)
	api.GET("/backgrounds/:id/thumb.png", s.handleBackgroundThumb)
	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.GET("/images/:id/original", s.handleOriginal)
	api.GET("/images/:id/cutout.png", s.handleCutout)
	api.GET("/render/preview", s.handlePreview)
	api.GET("/render/download", s.handleDownload)
	api.POST("/render/zip", s.handleZip)

	return s
}

func (s *Server) Start() error {
	s.srv = &http.Server{Addr: s.cfg.ServerAddr, Handler: s.router}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv != nil {
		_ = s.srv.Shutdown(ctx)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// clientToken resolves the caller identity: query parameter (so <img> tags on
// a cross-domain frontend work), then cookie, then header for dev/testing.
func clientToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	if tok, err := c.Cookie("client_token"); err == nil && tok != "" {
		return tok
	}
	return c.GetHeader("X-Client-Token")
}

func (s *Server) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrNoOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing client token"})
	case errors.Is(err, jobs.ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, backgrounds.ErrUnknownBackground):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown background"})
	case errors.Is(err, backgrounds.ErrInvalidSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
	case errors.Is(err, render.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported output format"})
	case errors.Is(err, errNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type registerIn struct {
	Token string `json:"token" binding:"required,min=8,max=128"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body registerIn
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.UpsertClient(c.Request.Context(), body.Token); err != nil {
		s.respondErr(c, err)
		return
	}
	c.SetCookie("client_token", body.Token, 60*60*24*365, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleMe(c *gin.Context) {
	tok := clientToken(c)
	if tok != "" {
		_ = s.store.UpsertClient(c.Request.Context(), tok)
	}
	c.JSON(http.StatusOK, gin.H{"paid": tok != "" && s.store.Paid(c.Request.Context(), tok)})
}

func (s *Server) handleBackgrounds(c *gin.Context) {
	defs := s.catalog.List()
	out := make([]gin.H, 0, len(defs))
	for _, d := range defs {
		out = append(out, gin.H{
			"id":          d.ID,
			"name":        d.Name,
			"description": d.Description,
			"thumb_url":   fmt.Sprintf("/api/backgrounds/%s/thumb.png", d.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"backgrounds": out})
}

func (s *Server) handleBackgroundThumb(c *gin.Context) {
	img, err := s.catalog.Generate(c.Param("id"), thumbWidth, thumbHeight)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	data, err := render.Encode(img, "png", 0)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleCreateJob(c *gin.Context) {
	tok := clientToken(c)
	if tok == "" {
		s.respondErr(c, jobs.ErrNoOwner)
		return
	}
	_ = s.store.UpsertClient(c.Request.Context(), tok)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["files"]

	var uploads []jobs.Upload
	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		closers = append(closers, f)
		uploads = append(uploads, jobs.Upload{Filename: fh.Filename, Data: f})
	}

	job, imgs, err := s.orch.CreateJob(c.Request.Context(), tok, uploads)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	out := make([]gin.H, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, gin.H{
			"id":           img.ID,
			"filename":     img.Filename,
			"status":       img.Status,
			"original_url": fmt.Sprintf("/api/images/%s/original", img.ID),
			"cutout_url":   fmt.Sprintf("/api/images/%s/cutout.png", img.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "images": out})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	tok := clientToken(c)
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondErr(c, storage.ErrNotFound)
		return
	}
	imgs, err := s.orch.JobStatus(c.Request.Context(), tok, jobID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	out := make([]gin.H, 0, len(imgs))
	for _, img := range imgs {
		item := gin.H{
			"id":       img.ID,
			"filename": img.Filename,
			"status":   img.Status,
		}
		if img.Error.Valid {
			item["error"] = img.Error.String
		}
		if img.Width.Valid {
			item["width"] = img.Width.Int32
			item["height"] = img.Height.Int32
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "images": out})
}

func (s *Server) lookupImage(c *gin.Context) (*models.Image, bool) {
	tok := clientToken(c)
	if tok == "" {
		s.respondErr(c, jobs.ErrNoOwner)
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondErr(c, storage.ErrNotFound)
		return nil, false
	}
	img, err := s.store.ImageByID(c.Request.Context(), tok, id)
	if err != nil {
		s.respondErr(c, err)
		return nil, false
	}
	return img, true
}

func (s *Server) handleOriginal(c *gin.Context) {
	img, ok := s.lookupImage(c)
	if !ok {
		return
	}
	rc, err := s.blobs.Open(c.Request.Context(), img.OriginalKey)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	defer rc.Close()
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

func (s *Server) handleCutout(c *gin.Context) {
	img, ok := s.lookupImage(c)
	if !ok {
		return
	}
	if img.Status != models.StatusReady {
		s.respondErr(c, fmt.Errorf("%w (status=%s)", errNotReady, img.Status))
		return
	}
	rc, err := s.blobs.Open(c.Request.Context(), img.CutoutKey)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

// loadCutout fetches and decodes the cutout for rendering, enforcing
// ownership and readiness.
func (s *Server) loadCutout(ctx context.Context, token string, imageID uuid.UUID) (image.Image, error) {
	img, err := s.store.ImageByID(ctx, token, imageID)
	if err != nil {
		return nil, err
	}
	if img.Status != models.StatusReady {
		return nil, fmt.Errorf("%w (status=%s)", errNotReady, img.Status)
	}
	rc, err := s.blobs.Open(ctx, img.CutoutKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return imaging.Decode(rc)
}

type renderQuery struct {
	ImageID string  `form:"image_id" binding:"required"`
	BgID    string  `form:"bg_id" binding:"required"`
	Rotate  float64 `form:"rotate"`
	Scale   float64 `form:"scale,default=1"`
	X       float64 `form:"x"`
	Y       float64 `form:"y"`
	Shadow  bool    `form:"shadow,default=true"`
	Snap    bool    `form:"snap"`
	Fmt     string  `form:"fmt"`
}

func (q renderQuery) params() models.RenderParams {
	return models.RenderParams{
		RotateDeg:  q.Rotate,
		Scale:      q.Scale,
		OffsetX:    q.X,
		OffsetY:    q.Y,
		Shadow:     q.Shadow,
		SnapCenter: q.Snap,
	}
}

func (s *Server) renderOne(c *gin.Context, q renderQuery, paid bool) (image.Image, error) {
	tok := clientToken(c)
	if tok == "" {
		return nil, jobs.ErrNoOwner
	}
	imageID, err := uuid.Parse(q.ImageID)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	cutout, err := s.loadCutout(c.Request.Context(), tok, imageID)
	if err != nil {
		return nil, err
	}
	b := cutout.Bounds()
	bg, err := s.catalog.Generate(q.BgID, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	return render.Composite(cutout, bg, q.params(), paid, s.cfg.WatermarkText), nil
}

func (s *Server) handlePreview(c *gin.Context) {
	var q renderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Fmt == "" {
		q.Fmt = "png"
	}

	paid := s.store.Paid(c.Request.Context(), clientToken(c))
	out, err := s.renderOne(c, q, paid)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	data, err := render.Encode(render.ClampPreview(out, previewMax), q.Fmt, 92)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.Data(http.StatusOK, mimeFor(q.Fmt), data)
}

func (s *Server) handleDownload(c *gin.Context) {
	var q renderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Fmt == "" {
		q.Fmt = "jpg"
	}

	paid := s.store.Paid(c.Request.Context(), clientToken(c))
	out, err := s.renderOne(c, q, paid)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	data, err := render.Encode(out, q.Fmt, 92)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, q.ImageID, extFor(q.Fmt)))
	c.Data(http.StatusOK, mimeFor(q.Fmt), data)
}

func mimeFor(format string) string {
	if strings.EqualFold(format, "png") {
		return "image/png"
	}
	return "image/jpeg"
}

func extFor(format string) string {
	if strings.EqualFold(format, "png") {
		return "png"
	}
	return "jpg"
}
