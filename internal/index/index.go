// Package index holds the chapter or QCM index checked against a PDF.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrInvalidIndex is returned for JSON that is not a usable index.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrNotFound is returned for an unknown entry id.
	ErrNotFound = errors.New("entry not found")
	// ErrNoIndex is returned when no index has been loaded.
	ErrNoIndex = errors.New("no index loaded")
	// ErrWrongMode is returned for a chapter operation on a QCM index
	// and the reverse.
	ErrWrongMode = errors.New("operation does not apply to this index")
)

// Mode is the kind of entries an index holds.
type Mode int

const (
	ChapterMode Mode = iota
	QCMMode
)

func (m Mode) String() string {
	if m == QCMMode {
		return "qcm"
	}
	return "chapters"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// BlockType tells a question block from its correction.
type BlockType string

const (
	BlockQCM        BlockType = "QCM"
	BlockCorrection BlockType = "Correction"
)

// Chapter is one entry of a chapter index. Pages are 1-based.
type Chapter struct {
	ID         string    `json:"id"`
	Name       string    `json:"chapitre_nom"`
	SubChapter *string   `json:"sous_chapitre"`
	Type       BlockType `json:"type_bloc"`
	AIPage     int       `json:"page_ia"`
	Start      int       `json:"page_debut"`
	End        int       `json:"page_fin"`
}

// exported is the file form of a Chapter.
type exported struct {
	Name       string    `json:"chapitre_nom"`
	SubChapter *string   `json:"sous_chapitre"`
	Type       BlockType `json:"type_bloc"`
	AIPage     int       `json:"page_ia"`
	Start      int       `json:"page_debut"`
	End        int       `json:"page_fin"`
}

// QCM is one multiple-choice question.
type QCM struct {
	ID            string            `json:"id"`
	Number        json.Number       `json:"numero"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	Answer        string            `json:"reponse_correcte"`
	Explanation   string            `json:"explication"`
	SubChapter    *string           `json:"sous_chapitre"`
	SourceChapter string            `json:"sourceChapter"`
}

// UnmarshalJSON accepts numeric and string ids.
func (q *QCM) UnmarshalJSON(b []byte) error {
	type plain QCM
	var aux struct {
		plain
		ID any `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*q = QCM(aux.plain)
	switch id := aux.ID.(type) {
	case string:
		q.ID = id
	case float64:
		q.ID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	return nil
}

// Index is a parsed index. It is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	mode     Mode
	chapters []Chapter
	qcms     []QCM
	newID    func() string
}

// Parse reads an index: a non-empty JSON array whose first element
// decides the mode. An element with "chapitre_nom" means chapters,
// anything else means QCMs. Chapters get fresh ids; QCMs keep theirs
// and get one when missing.
func Parse(data []byte) (*Index, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrInvalidIndex)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw[0], &probe); err != nil {
		return nil, fmt.Errorf("%w: entry 1 is not an object", ErrInvalidIndex)
	}

	ix := &Index{newID: uuid.NewString}
	if _, ok := probe["chapitre_nom"]; ok {
		ix.mode = ChapterMode
		ix.chapters = make([]Chapter, len(raw))
		for i, r := range raw {
			var e exported
			if err := json.Unmarshal(r, &e); err != nil {
				return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidIndex, i+1, err)
			}
			ix.chapters[i] = fromExported(e, ix.newID())
		}
		return ix, nil
	}

	ix.mode = QCMMode
	ix.qcms = make([]QCM, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &ix.qcms[i]); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidIndex, i+1, err)
		}
		if ix.qcms[i].ID == "" {
			ix.qcms[i].ID = ix.newID()
		}
	}
	return ix, nil
}

func fromExported(e exported, id string) Chapter {
	return Chapter{ID: id, Name: e.Name, SubChapter: e.SubChapter, Type: e.Type, AIPage: e.AIPage, Start: e.Start, End: e.End}
}

func toExported(c Chapter) exported {
	return exported{Name: c.Name, SubChapter: c.SubChapter, Type: c.Type, AIPage: c.AIPage, Start: c.Start, End: c.End}
}

// Mode reports the index mode.
func (ix *Index) Mode() Mode { return ix.mode }

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.mode == QCMMode {
		return len(ix.qcms)
	}
	return len(ix.chapters)
}

// Chapters returns a copy of the chapter entries in order.
func (ix *Index) Chapters() []Chapter {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.chapters)
}

// QCMs returns a copy of the questions in order.
func (ix *Index) QCMs() []QCM {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.qcms)
}

// Get returns the chapter with id.
func (ix *Index) Get(id string) (Chapter, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, err := ix.find(id)
	if err != nil {
		return Chapter{}, err
	}
	return ix.chapters[i], nil
}

// Question returns the QCM with id.
func (ix *Index) Question(id string) (QCM, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.mode != QCMMode {
		return QCM{}, ErrWrongMode
	}
	for _, q := range ix.qcms {
		if q.ID == id {
			return q, nil
		}
	}
	return QCM{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (ix *Index) find(id string) (int, error) {
	if ix.mode != ChapterMode {
		return 0, ErrWrongMode
	}
	i := slices.IndexFunc(ix.chapters, func(c Chapter) bool { return c.ID == id })
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return i, nil
}

// Add inserts c after the entry with id after, or at the end when after
// is empty. The stored entry gets a new id and is returned.
func (ix *Index) Add(after string, c Chapter) (Chapter, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.mode != ChapterMode {
		return Chapter{}, ErrWrongMode
	}
	at := len(ix.chapters)
	if after != "" {
		i, err := ix.find(after)
		if err != nil {
			return Chapter{}, err
		}
		at = i + 1
	}
	c.ID = ix.newID()
	ix.chapters = slices.Insert(ix.chapters, at, c)
	return c, nil
}

// Update applies fn to the entry with id. fn cannot change the id.
func (ix *Index) Update(id string, fn func(*Chapter)) (Chapter, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	i, err := ix.find(id)
	if err != nil {
		return Chapter{}, err
	}
	c := ix.chapters[i]
	fn(&c)
	c.ID = id
	ix.chapters[i] = c
	return c, nil
}

// Remove deletes the entry with id.
func (ix *Index) Remove(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	i, err := ix.find(id)
	if err != nil {
		return err
	}
	ix.chapters = slices.Delete(ix.chapters, i, i+1)
	return nil
}

// Duplicate inserts a copy of the entry with id right after it.
func (ix *Index) Duplicate(id string) (Chapter, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	i, err := ix.find(id)
	if err != nil {
		return Chapter{}, err
	}
	c := ix.chapters[i]
	if c.SubChapter != nil {
		s := *c.SubChapter
		c.SubChapter = &s
	}
	c.ID = ix.newID()
	ix.chapters = slices.Insert(ix.chapters, i+1, c)
	return c, nil
}

// Reclassify sets the block type of the entry with id. An empty t
// toggles between QCM and Correction.
func (ix *Index) Reclassify(id string, t BlockType) (Chapter, error) {
	switch t {
	case "", BlockQCM, BlockCorrection:
	default:
		return Chapter{}, fmt.Errorf("%w: block type %q", ErrInvalidIndex, t)
	}
	return ix.Update(id, func(c *Chapter) {
		if t == "" {
			t = BlockQCM
			if c.Type == BlockQCM {
				t = BlockCorrection
			}
		}
		c.Type = t
	})
}

// Export writes the index as indented JSON. Chapters are written without
// their ids, so a re-import yields the same names, types and pages.
func (ix *Index) Export() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var v any = ix.qcms
	if ix.mode == ChapterMode {
		out := make([]exported, len(ix.chapters))
		for i, c := range ix.chapters {
			out[i] = toExported(c)
		}
		v = out
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("export index: %w", err)
	}
	return buf.Bytes(), nil
}

// Issue is a chapter whose pages do not fit the document.
type Issue struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Name    string `json:"chapitre_nom"`
	Problem string `json:"problem"`
}

// Check lists chapters whose pages fall outside 1..pages or run
// backwards.
func (ix *Index) Check(pages int) []Issue {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var issues []Issue
	in := func(p int) bool { return p >= 1 && p <= pages }
	for i, c := range ix.chapters {
		var problem string
		switch {
		case !in(c.Start):
			problem = fmt.Sprintf("page_debut %d outside 1..%d", c.Start, pages)
		case !in(c.End):
			problem = fmt.Sprintf("page_fin %d outside 1..%d", c.End, pages)
		case c.End < c.Start:
			problem = fmt.Sprintf("page_fin %d before page_debut %d", c.End, c.Start)
		case c.AIPage != 0 && !in(c.AIPage):
			problem = fmt.Sprintf("page_ia %d outside 1..%d", c.AIPage, pages)
		default:
			continue
		}
		issues = append(issues, Issue{Index: i + 1, ID: c.ID, Name: c.Name, Problem: problem})
	}
	return issues
}

// Selection is the active entry, cleared whenever a session starts.
type Selection struct {
	mu sync.Mutex
	id string
}

// Set marks id active.
func (s *Selection) Set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Active returns the active id, or "" for none.
func (s *Selection) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Clear drops the active entry.
func (s *Selection) Clear() { s.Set("") }
