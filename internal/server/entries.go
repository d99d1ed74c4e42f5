package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/apperr"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
)

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	ix, err := s.sess.Index()
	if err != nil {
		s.writeError(w, err)
		return
	}
	body := map[string]any{"mode": ix.Mode(), "active": s.sess.Active()}
	if ix.Mode() == index.QCMMode {
		body["entries"] = ix.QCMs()
	} else {
		body["entries"] = ix.Chapters()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		After string      `json:"after"`
		Entry chapterBody `json:"entry"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ix, err := s.sess.Index()
	if err != nil {
		s.writeError(w, err)
		return
	}
	var c index.Chapter
	req.Entry.apply(&c)
	c, err = ix.Add(req.After, c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	var body chapterBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.withIndex(w, r, http.StatusOK, func(ix *index.Index, id string) (any, error) {
		return ix.Update(id, body.apply)
	})
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	ix, err := s.sess.Index()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := ix.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) duplicateEntry(w http.ResponseWriter, r *http.Request) {
	s.withIndex(w, r, http.StatusCreated, func(ix *index.Index, id string) (any, error) {
		return ix.Duplicate(id)
	})
}

// reclassifyEntry sets {"type": "QCM"|"Correction"}; an empty body
// toggles.
func (s *Server) reclassifyEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type index.BlockType `json:"type"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.withIndex(w, r, http.StatusOK, func(ix *index.Index, id string) (any, error) {
		return ix.Reclassify(id, req.Type)
	})
}

// jumpToEntry moves the viewer to {"field": "page_debut"|"page_fin"}.
func (s *Server) jumpToEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field session.Field `json:"field"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	page, err := s.sess.Jump(mux.Vars(r)["id"], req.Field)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"page": page})
}

func (s *Server) withIndex(w http.ResponseWriter, r *http.Request, status int, fn func(*index.Index, string) (any, error)) {
	ix, err := s.sess.Index()
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if id == "" {
		s.writeError(w, apperr.Validation("entry id is required", nil))
		return
	}
	v, err := fn(ix, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}
