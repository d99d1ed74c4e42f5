package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

func TestFromClassifiesDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		typ    Type
		status int
	}{
		{&engine.LoadError{Err: errors.New("no xref")}, TypeProcessing, http.StatusUnprocessableEntity},
		{&engine.RenderError{Page: 2, Err: errors.New("bad stream")}, TypeProcessing, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: ctx", engine.ErrCanceled), TypeCanceled, 499},
		{engine.ErrEmptyQuery, TypeValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: not an array", index.ErrInvalidIndex), TypeValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: abc", index.ErrNotFound), TypeNotFound, http.StatusNotFound},
		{navigator.ErrNoDocument, TypeConflict, http.StatusConflict},
		{navigator.ErrSearchInProgress, TypeConflict, http.StatusConflict},
		{errors.New("disk on fire"), TypeInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.err.Error(), func(t *testing.T) {
			e := From(c.err)
			assert.Equal(t, c.typ, e.Type)
			assert.Equal(t, c.status, e.StatusCode)
			assert.ErrorIs(t, e, c.err)
		})
	}
}

func TestNotFoundKeepsCause(t *testing.T) {
	err := fmt.Errorf("remove: %w", fmt.Errorf("%w: id-5", index.ErrNotFound))
	e := From(err)
	assert.ErrorIs(t, e, index.ErrNotFound)
	assert.Equal(t, "entry not found", e.Message)
	assert.Equal(t, "remove: entry not found: id-5", e.Details)
	assert.Equal(t, "not_found: entry not found (remove: entry not found: id-5)", e.Error())
}

func TestFromKeepsAppErrors(t *testing.T) {
	e := NotFound("entry missing", nil)
	assert.Same(t, e, From(fmt.Errorf("wrapped: %w", e)))
	assert.Equal(t, "not_found: entry missing", e.Error())
	assert.Equal(t, "validation: bad (boom)", Validation("bad", errors.New("boom")).Error())
}
