package server

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"carstage/internal/jobs"
	"carstage/internal/render"
)

type zipItem struct {
	ImageID string  `json:"image_id"`
	BgID    string  `json:"bg_id"`
	Rotate  float64 `json:"rotate"`
	Scale   float64 `json:"scale"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Shadow  *bool   `json:"shadow"`
	Snap    bool    `json:"snap"`
}

type zipIn struct {
	Items []zipItem `json:"items"`
	Fmt   string    `json:"fmt"`
}

// handleZip renders a batch of composites and packages them as one archive.
func (s *Server) handleZip(c *gin.Context) {
	tok := clientToken(c)
	if tok == "" {
		s.respondErr(c, jobs.ErrNoOwner)
		return
	}

	var body zipIn
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no items"})
		return
	}
	if body.Fmt == "" {
		body.Fmt = "jpg"
	}

	paid := s.store.Paid(c.Request.Context(), tok)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, it := range body.Items {
		q := renderQuery{
			ImageID: it.ImageID,
			BgID:    it.BgID,
			Rotate:  it.Rotate,
			Scale:   it.Scale,
			X:       it.X,
			Y:       it.Y,
			Shadow:  it.Shadow == nil || *it.Shadow,
			Snap:    it.Snap,
		}
		if q.Scale == 0 {
			q.Scale = 1
		}

		out, err := s.renderOne(c, q, paid)
		if err != nil {
			s.respondErr(c, err)
			return
		}
		data, err := render.Encode(out, body.Fmt, 92)
		if err != nil {
			s.respondErr(c, err)
			return
		}

		w, err := zw.Create(fmt.Sprintf("%s.%s", it.ImageID, extFor(body.Fmt)))
		if err != nil {
			s.respondErr(c, err)
			return
		}
		if _, err := w.Write(data); err != nil {
			s.respondErr(c, err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="carstage_processed.zip"`)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
