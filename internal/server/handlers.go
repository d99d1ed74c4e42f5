package server

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/apperr"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// startSession takes a multipart upload with a "pdf" and an "index" file.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, apperr.Validation(fmt.Sprintf("upload larger than %d MB", s.cfg.MaxUploadMB), err))
			return
		}
		s.writeError(w, apperr.Validation("expected a multipart form", err))
		return
	}

	pdf, name, err := formFile(r, "pdf")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		s.writeError(w, apperr.Validation("the pdf field must be a .pdf file", nil))
		return
	}
	idx, _, err := formFile(r, "index")
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.sess.Start(pdf, name, idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ix, _ := s.sess.Index()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session": id,
		"name":    name,
		"mode":    ix.Mode(),
		"entries": ix.Len(),
	})
}

func formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", apperr.Validation("both a PDF and a JSON index are required", fmt.Errorf("%s: %w", field, err))
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperr.Validation("could not read upload", err)
	}
	name := strings.TrimSpace(filepath.Base(header.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = field
	}
	return data, name, nil
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(s.sess.Navigator().Snapshot()))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type pageRequest struct {
	Page   int    `json:"page,omitempty"`
	Action string `json:"action,omitempty"`
}

// setPage accepts {"page": n} or {"action": "next"|"prev"|"first"|"last"}.
// Rendering happens in the background; poll GET /session.
func (s *Server) setPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	nav := s.sess.Navigator()
	var err error
	switch req.Action {
	case "":
		if req.Page == 0 {
			s.writeError(w, apperr.Validation("page or action is required", nil))
			return
		}
		err = nav.GoTo(req.Page)
	case "next":
		err = nav.Next()
	case "prev":
		err = nav.Prev()
	case "first":
		err = nav.First()
	case "last":
		err = nav.Last()
	default:
		s.writeError(w, apperr.Validation(fmt.Sprintf("unknown action %q", req.Action), nil))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.view(nav.Snapshot()))
}

func (s *Server) setWidth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width float64 `json:"width"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	nav := s.sess.Navigator()
	if err := nav.SetWidth(req.Width); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.view(nav.Snapshot()))
}

// getFrame serves the last rendered page. X-Stale is set when the render
// that should have replaced it failed.
func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Navigator().Snapshot()
	if snap.Frame == nil {
		s.writeError(w, apperr.NotFound("no page has been rendered", nil))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Page", strconv.Itoa(snap.Frame.Page))
	w.Header().Set("X-Stale", strconv.FormatBool(snap.Stale))
	if err := png.Encode(w, snap.Frame.Image); err != nil {
		s.log.Error("encode frame", err, "page", snap.Frame.Page)
	}
}

func (s *Server) getOverlay(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Navigator().Snapshot()
	f := snap.Frame
	if f == nil {
		s.writeError(w, apperr.NotFound("no page has been rendered", nil))
		return
	}
	frags := f.Fragments
	if frags == nil {
		frags = []raster.Fragment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":      f.Page,
		"width":     f.Width,
		"height":    f.Height,
		"scale":     f.Scale,
		"stale":     snap.Stale,
		"fragments": frags,
	})
}

type searchRequest struct {
	Query string `json:"query,omitempty"`
	QCM   string `json:"qcm,omitempty"`
}

// search runs a text search, or looks up a QCM question when "qcm" names
// one, and answers {found, page}.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var (
		res engine.SearchResult
		err error
	)
	if req.QCM != "" {
		res, err = s.sess.Find(r.Context(), req.QCM)
	} else {
		res, err = s.sess.Navigator().Search(r.Context(), req.Query)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	ix, err := s.sess.Index()
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := ix.Export()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="index_corrige.json"`)
	_, _ = w.Write(data)
}

// chapterBody is the editable part of a chapter.
type chapterBody struct {
	Name       string          `json:"chapitre_nom"`
	SubChapter *string         `json:"sous_chapitre"`
	Type       index.BlockType `json:"type_bloc"`
	AIPage     int             `json:"page_ia"`
	Start      int             `json:"page_debut"`
	End        int             `json:"page_fin"`
}

func (b chapterBody) apply(c *index.Chapter) {
	c.Name, c.SubChapter, c.Type = b.Name, b.SubChapter, b.Type
	c.AIPage, c.Start, c.End = b.AIPage, b.Start, b.End
}
