package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/enginetest"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

const chapters = `[
  {"chapitre_nom": "A", "sous_chapitre": null, "type_bloc": "QCM", "page_ia": 2, "page_debut": 2, "page_fin": 4},
  {"chapitre_nom": "B", "sous_chapitre": null, "type_bloc": "Correction", "page_ia": 5, "page_debut": 5, "page_fin": 30}
]`

const qcms = `[{"id": "q1", "numero": 1, "question": "Quel organite ?", "options": {"A": "x"},
  "reponse_correcte": "A", "explication": "", "sous_chapitre": null, "sourceChapter": "A"}]`

func newSession(t *testing.T, f *enginetest.Fake) *Session {
	t.Helper()
	nav := navigator.New()
	t.Cleanup(nav.Close)
	return New(nav, nil, engine.WithOpener(f.Opener()))
}

func settled(t *testing.T, s *Session) navigator.Snapshot {
	t.Helper()
	var snap navigator.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Navigator().Snapshot()
		return !snap.Busy()
	}, 2*time.Second, 2*time.Millisecond)
	return snap
}

func TestStartIssuesFreshIDs(t *testing.T) {
	s := newSession(t, enginetest.Pages("doc", 10))
	id1, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	settled(t, s)
	id2, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id2, s.ID())
}

func TestStartRejectsBadIndex(t *testing.T) {
	s := newSession(t, enginetest.Pages("doc", 10))
	id, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)

	_, err = s.Start([]byte("%PDF"), "other.pdf", []byte(`[]`))
	assert.ErrorIs(t, err, index.ErrInvalidIndex)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, "doc.pdf", settled(t, s).Name)
}

func TestJump(t *testing.T) {
	s := newSession(t, enginetest.Pages("doc", 10))
	_, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	settled(t, s)
	ix, err := s.Index()
	require.NoError(t, err)
	entries := ix.Chapters()

	page, err := s.Jump(entries[0].ID, End)
	require.NoError(t, err)
	assert.Equal(t, 4, page)
	assert.Equal(t, 4, settled(t, s).Page)
	assert.Equal(t, entries[0].ID, s.Active())

	// page_fin 30 is past the end of the 10 page document
	page, err = s.Jump(entries[1].ID, End)
	require.NoError(t, err)
	assert.Equal(t, 30, page)
	snap := settled(t, s)
	assert.Equal(t, 10, snap.Page)
	assert.NoError(t, snap.RenderErr)

	_, err = s.Jump("missing", Start)
	assert.ErrorIs(t, err, index.ErrNotFound)
	_, err = s.Jump(entries[0].ID, "page_ia")
	assert.ErrorIs(t, err, index.ErrInvalidIndex)
}

func TestNewSessionClearsSelection(t *testing.T) {
	s := newSession(t, enginetest.Pages("doc", 10))
	_, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	settled(t, s)
	ix, _ := s.Index()
	_, err = s.Jump(ix.Chapters()[0].ID, Start)
	require.NoError(t, err)

	_, err = s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	assert.Empty(t, s.Active())
	assert.Equal(t, 1, settled(t, s).Page)
}

func TestFindQuestion(t *testing.T) {
	f := enginetest.Pages("qcm", 6)
	f.Texts[2] = "Quel organite produit l'ATP"
	f.Texts[4] = "Question 1. Quel organite ? A. la mitochondrie"
	s := newSession(t, f)
	_, err := s.Start([]byte("%PDF"), "qcm.pdf", []byte(qcms))
	require.NoError(t, err)
	settled(t, s)

	res, err := s.Find(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, engine.SearchResult{Found: true, Page: 5, Scanned: 5}, res)
	assert.Equal(t, "q1", s.Active())
	assert.Equal(t, 5, settled(t, s).Page)

	_, err = s.Find(context.Background(), "q9")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestWithoutIndex(t *testing.T) {
	s := newSession(t, enginetest.Pages("doc", 3))
	_, err := s.Jump("x", Start)
	assert.ErrorIs(t, err, index.ErrNoIndex)

	_, err = s.Start([]byte("%PDF"), "doc.pdf", nil)
	require.NoError(t, err)
	_, err = s.Index()
	assert.ErrorIs(t, err, index.ErrNoIndex)

	ix, err := s.SetIndex([]byte(chapters))
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
}

func TestReset(t *testing.T) {
	f := enginetest.Pages("doc", 3)
	s := newSession(t, f)
	_, err := s.Start([]byte("%PDF"), "doc.pdf", []byte(chapters))
	require.NoError(t, err)
	settled(t, s)

	s.Reset()
	assert.Empty(t, s.ID())
	assert.Equal(t, navigator.Idle, s.Navigator().Snapshot().State)
	_, err = s.Index()
	assert.ErrorIs(t, err, index.ErrNoIndex)
	s.Navigator().Wait()
	assert.Equal(t, 1, f.Closes())
}
