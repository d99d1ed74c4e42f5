package logger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixed(l *AppLogger) *AppLogger {
	l.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return l
}

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := fixed(New(&buf, DEBUG))
	l.Info("page rendered", "page", 3, "width", 900)
	assert.Equal(t, "[2024-03-01 09:30:00] INFO: page rendered page=3 width=900\n", buf.String())
}

func TestErrorCarriesCause(t *testing.T) {
	var buf bytes.Buffer
	l := fixed(New(&buf, INFO))
	l.Error("load failed", errors.New("bad xref"), "name", "a.pdf")
	assert.Equal(t, "[2024-03-01 09:30:00] ERROR: load failed error=bad xref name=a.pdf\n", buf.String())
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)
	l.Debug("x")
	l.Info("y")
	assert.Empty(t, buf.String())
	l.Warn("z", "dangling")
	assert.Contains(t, buf.String(), "WARN: z dangling=?")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("Debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel("loud"))
	assert.True(t, ValidLevel("error"))
	assert.False(t, ValidLevel("loud"))
	assert.Equal(t, "ERROR", ERROR.String())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("ignored", errors.New("e"), "k", "v")
	})
}
