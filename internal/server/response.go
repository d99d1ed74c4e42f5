package server

import (
	"encoding/json"
	"net/http"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/apperr"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	if ae.StatusCode >= http.StatusInternalServerError {
		s.log.Error("request failed", err)
	}
	writeJSON(w, ae.StatusCode, ae)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("malformed request body", err)
	}
	return nil
}

type frameView struct {
	Page   int     `json:"page"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

type searchView struct {
	Query string `json:"query"`
	engine.SearchResult
}

// stateView is the JSON form of a navigator snapshot.
type stateView struct {
	Session     string      `json:"session,omitempty"`
	Generation  uint64      `json:"generation"`
	State       string      `json:"state"`
	Name        string      `json:"name,omitempty"`
	Title       string      `json:"title,omitempty"`
	Page        int         `json:"page"`
	PageCount   int         `json:"page_count"`
	Width       float64     `json:"width"`
	Loading     bool        `json:"loading"`
	Rendering   bool        `json:"rendering"`
	Stale       bool        `json:"stale"`
	LoadError   string      `json:"load_error,omitempty"`
	RenderError string      `json:"render_error,omitempty"`
	Searching   bool        `json:"searching"`
	Search      *searchView `json:"search,omitempty"`
	Active      string      `json:"active,omitempty"`
	Frame       *frameView  `json:"frame,omitempty"`
}

func (s *Server) view(snap navigator.Snapshot) stateView {
	v := stateView{
		Session:    s.sess.ID(),
		Generation: snap.Generation,
		State:      snap.State.String(),
		Name:       snap.Name,
		Title:      snap.Info.Title,
		Page:       snap.Page,
		PageCount:  snap.PageCount,
		Width:      snap.Width,
		Loading:    snap.State == navigator.Loading,
		Rendering:  snap.State == navigator.Rendering,
		Stale:      snap.Stale,
		Searching:  snap.Searching,
		Active:     s.sess.Active(),
	}
	if snap.LoadErr != nil {
		v.LoadError = snap.LoadErr.Error()
	}
	if snap.RenderErr != nil {
		v.RenderError = snap.RenderErr.Error()
	}
	if snap.Search != nil {
		v.Search = &searchView{Query: snap.Search.Query, SearchResult: snap.Search.Result}
	}
	if f := snap.Frame; f != nil {
		v.Frame = &frameView{Page: f.Page, Width: f.Width, Height: f.Height, Scale: f.Scale}
	}
	return v
}
