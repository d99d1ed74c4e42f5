package navigator_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/enginetest"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/pdftest"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

var pdf = []byte("%PDF-1.7")

func open(c *navigator.Controller, f *enginetest.Fake) uint64 {
	return c.Open(pdf, f.Name+".pdf", engine.WithOpener(f.Opener()))
}

// settle waits until no load or render is in flight and returns the
// resulting snapshot.
func settle(t *testing.T, c *navigator.Controller) navigator.Snapshot {
	t.Helper()
	var s navigator.Snapshot
	require.Eventually(t, func() bool {
		s = c.Snapshot()
		return !s.Busy()
	}, 2*time.Second, 2*time.Millisecond)
	return s
}

func started(t *testing.T, f *enginetest.Fake, page int) {
	t.Helper()
	for {
		select {
		case p := <-f.Started():
			if p == page {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("render of page %d never started", page)
		}
	}
}

func TestOpenRendersFirstPage(t *testing.T) {
	c := navigator.New(navigator.WithWidth(306))
	defer c.Close()
	f := enginetest.Pages("doc", 4)
	gen := open(c, f)

	s := settle(t, c)
	assert.Equal(t, gen, s.Generation)
	assert.Equal(t, navigator.Ready, s.State)
	assert.Equal(t, "doc.pdf", s.Name)
	assert.Equal(t, "doc", s.Info.Title)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 4, s.PageCount)
	require.NotNil(t, s.Frame)
	assert.Equal(t, 1, enginetest.PageOf(s.Frame.Image))
	assert.Equal(t, 306, s.Frame.Width)
	assert.InDelta(t, 0.5, s.Frame.Scale, 1e-9)
}

func TestLaterPageRequestWins(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("doc", 10)
	f.Hold(2)
	open(c, f)
	settle(t, c)

	require.NoError(t, c.GoTo(2))
	started(t, f, 2)
	require.NoError(t, c.Next())

	s := settle(t, c)
	assert.Equal(t, 3, s.Page)
	assert.Equal(t, 3, enginetest.PageOf(s.Frame.Image))
	assert.Equal(t, []int{1, 3}, f.Renders())
	assert.NoError(t, s.RenderErr)

	f.Let(2)
	c.Wait()
	assert.Equal(t, 3, enginetest.PageOf(c.Snapshot().Frame.Image))
}

func TestRequestsAreClamped(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	open(c, enginetest.Pages("doc", 10))
	settle(t, c)

	require.NoError(t, c.GoTo(15))
	s := settle(t, c)
	assert.Equal(t, 10, s.Page)
	assert.Equal(t, 10, enginetest.PageOf(s.Frame.Image))
	assert.NoError(t, s.RenderErr)

	require.NoError(t, c.Next())
	assert.Equal(t, 10, settle(t, c).Page)

	require.NoError(t, c.GoTo(-3))
	assert.Equal(t, 1, settle(t, c).Page)
	require.NoError(t, c.Prev())
	assert.Equal(t, 1, settle(t, c).Page)

	require.NoError(t, c.Last())
	assert.Equal(t, 10, settle(t, c).Page)
}

func TestPageRequestedWhileLoadingIsClamped(t *testing.T) {
	f := enginetest.Pages("doc", 10)
	gate := make(chan struct{})
	slow := func(ctx context.Context, data []byte) (engine.Backend, error) {
		<-gate
		return f, nil
	}
	c := navigator.New()
	defer c.Close()
	c.Open(pdf, "doc.pdf", engine.WithOpener(slow))
	require.NoError(t, c.GoTo(15))
	assert.Equal(t, navigator.Loading, c.Snapshot().State)
	close(gate)

	s := settle(t, c)
	assert.Equal(t, 10, s.Page)
	assert.Equal(t, 10, enginetest.PageOf(s.Frame.Image))
}

func TestLastRequestedWhileLoading(t *testing.T) {
	f := enginetest.Pages("doc", 8)
	gate := make(chan struct{})
	slow := func(ctx context.Context, data []byte) (engine.Backend, error) {
		<-gate
		return f, nil
	}
	c := navigator.New()
	defer c.Close()
	c.Open(pdf, "doc.pdf", engine.WithOpener(slow))
	require.NoError(t, c.Last())
	assert.Equal(t, 1, c.Snapshot().Page)
	close(gate)

	s := settle(t, c)
	assert.Equal(t, 8, s.Page)
	assert.Equal(t, 8, enginetest.PageOf(s.Frame.Image))
}

func TestGoToWhileLoadingOverridesLast(t *testing.T) {
	f := enginetest.Pages("doc", 8)
	gate := make(chan struct{})
	slow := func(ctx context.Context, data []byte) (engine.Backend, error) {
		<-gate
		return f, nil
	}
	c := navigator.New()
	defer c.Close()
	c.Open(pdf, "doc.pdf", engine.WithOpener(slow))
	require.NoError(t, c.Last())
	require.NoError(t, c.GoTo(3))
	close(gate)

	assert.Equal(t, 3, settle(t, c).Page)
}

func TestNewDocumentSupersedesRender(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	a := enginetest.Pages("a", 5)
	a.Hold(3)
	open(c, a)
	settle(t, c)
	require.NoError(t, c.GoTo(3))
	started(t, a, 3)

	b := enginetest.New("b", "bravo one", "bravo two")
	genB := open(c, b)
	s := settle(t, c)

	assert.Equal(t, genB, s.Generation)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 2, s.PageCount)
	require.NotNil(t, s.Frame)
	require.Len(t, s.Frame.Fragments, 1)
	assert.Equal(t, "bravo one", s.Frame.Fragments[0].Text)

	c.Wait()
	assert.Equal(t, 1, a.Closes())
	assert.Equal(t, []int{1}, a.Renders())
	assert.Zero(t, b.Closes())

	a.Let(3)
	c.Wait()
	assert.Equal(t, 1, a.Closes())
	assert.Equal(t, "bravo one", c.Snapshot().Frame.Fragments[0].Text)
}

func TestReopeningSameBytesStartsNewSession(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("doc", 4)
	g1 := open(c, f)
	settle(t, c)
	require.NoError(t, c.GoTo(3))
	settle(t, c)

	g2 := open(c, f)
	s := settle(t, c)
	assert.Greater(t, g2, g1)
	assert.Equal(t, 1, s.Page)
	c.Wait()
	assert.Equal(t, 1, f.Closes())
}

func TestLoadFailure(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	broken := func(context.Context, []byte) (engine.Backend, error) {
		return nil, errors.New("no trailer")
	}
	c.Open(pdf, "bad.pdf", engine.WithOpener(broken))
	s := settle(t, c)

	assert.Equal(t, navigator.Error, s.State)
	var le *engine.LoadError
	require.ErrorAs(t, s.LoadErr, &le)
	assert.Contains(t, s.LoadErr.Error(), "no trailer")
	assert.Nil(t, s.Frame)

	assert.ErrorIs(t, c.GoTo(2), navigator.ErrNoDocument)
	_, err := c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, navigator.ErrNoDocument)

	open(c, enginetest.Pages("good", 2))
	s = settle(t, c)
	assert.Equal(t, navigator.Ready, s.State)
	assert.NoError(t, s.LoadErr)
}

func TestRenderFailureKeepsStaleFrame(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("doc", 3)
	f.FailPage = 2
	open(c, f)
	settle(t, c)

	require.NoError(t, c.GoTo(2))
	s := settle(t, c)
	assert.Equal(t, navigator.Ready, s.State)
	assert.Equal(t, 2, s.Page)
	var re *engine.RenderError
	require.ErrorAs(t, s.RenderErr, &re)
	assert.Equal(t, 2, re.Page)
	assert.True(t, s.Stale)
	assert.Equal(t, 1, enginetest.PageOf(s.Frame.Image))

	require.NoError(t, c.Next())
	s = settle(t, c)
	assert.NoError(t, s.RenderErr)
	assert.False(t, s.Stale)
	assert.Equal(t, 3, enginetest.PageOf(s.Frame.Image))
}

func TestSearchMovesToMatch(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("bio", 20)
	f.Texts[6] = "Chapter 3: PHOTOSYNTHESIS"
	open(c, f)
	settle(t, c)

	res, err := c.Search(context.Background(), "photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, engine.SearchResult{Found: true, Page: 7, Scanned: 7}, res)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, f.TextCalls())

	s := settle(t, c)
	assert.Equal(t, 7, s.Page)
	assert.Equal(t, 7, enginetest.PageOf(s.Frame.Image))
	require.NotNil(t, s.Search)
	assert.Equal(t, "photosynthesis", s.Search.Query)
	assert.False(t, s.Searching)
}

func TestSearchMissKeepsPage(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	open(c, enginetest.Pages("doc", 4))
	settle(t, c)
	require.NoError(t, c.GoTo(2))
	settle(t, c)

	res, err := c.Search(context.Background(), "chlorophyll")
	require.NoError(t, err)
	assert.False(t, res.Found)
	s := settle(t, c)
	assert.Equal(t, 2, s.Page)
	assert.False(t, s.Search.Result.Found)

	_, err = c.Search(context.Background(), "")
	assert.ErrorIs(t, err, engine.ErrEmptyQuery)
}

func TestSearchIsSingleFlight(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("doc", 3)
	f.TextGate = make(chan struct{})
	open(c, f)
	settle(t, c)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), "page 2")
		errc <- err
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Searching }, time.Second, time.Millisecond)

	_, err := c.Search(context.Background(), "page 3")
	assert.ErrorIs(t, err, navigator.ErrSearchInProgress)

	close(f.TextGate)
	require.NoError(t, <-errc)
	assert.Equal(t, 2, settle(t, c).Page)
}

func TestNewDocumentCancelsSearch(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	a := enginetest.Pages("a", 3)
	a.TextGate = make(chan struct{})
	open(c, a)
	settle(t, c)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), "page 3")
		errc <- err
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Searching }, time.Second, time.Millisecond)

	open(c, enginetest.Pages("b", 2))
	assert.ErrorIs(t, <-errc, engine.ErrCanceled)
	s := settle(t, c)
	assert.False(t, s.Searching)
	assert.Nil(t, s.Search)
	assert.Equal(t, 1, s.Page)
}

func TestSetWidthRerenders(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	open(c, enginetest.Pages("doc", 2))
	settle(t, c)

	assert.ErrorIs(t, c.SetWidth(0), navigator.ErrInvalidWidth)
	require.NoError(t, c.SetWidth(612))
	s := settle(t, c)
	assert.Equal(t, 612, s.Frame.Width)
	assert.InDelta(t, 1.0, s.Frame.Scale, 1e-9)
}

func TestSetWidthIsClamped(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	f := enginetest.Pages("strip", 1)
	f.Width, f.Height = 400, 1
	open(c, f)
	settle(t, c)

	require.NoError(t, c.SetWidth(1e9))
	s := settle(t, c)
	assert.Equal(t, float64(navigator.MaxWidth), s.Width)
	require.NotNil(t, s.Frame)
	assert.Equal(t, navigator.MaxWidth, s.Frame.Width)
	assert.NoError(t, s.RenderErr)

	require.NoError(t, c.SetWidth(1))
	assert.Equal(t, float64(navigator.MinWidth), settle(t, c).Width)

	assert.ErrorIs(t, c.SetWidth(math.NaN()), navigator.ErrInvalidWidth)
	assert.ErrorIs(t, c.SetWidth(math.Inf(1)), navigator.ErrInvalidWidth)
	assert.Equal(t, float64(navigator.MinWidth), c.Snapshot().Width)
}

func TestResetReleasesDocument(t *testing.T) {
	c := navigator.New()
	f := enginetest.Pages("doc", 2)
	open(c, f)
	settle(t, c)

	c.Reset()
	s := c.Snapshot()
	assert.Equal(t, navigator.Idle, s.State)
	assert.Nil(t, s.Frame)
	assert.Zero(t, s.PageCount)
	c.Close()
	assert.Equal(t, 1, f.Closes())
}

func TestSubscribeSeesLatestState(t *testing.T) {
	c := navigator.New()
	defer c.Close()
	updates, stop := c.Subscribe()
	defer stop()

	first := <-updates
	assert.Equal(t, navigator.Idle, first.State)

	open(c, enginetest.Pages("doc", 2))
	settle(t, c)
	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			return s.State == navigator.Ready && s.Frame != nil
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestControllerWithNativeEngine(t *testing.T) {
	data := pdftest.Build(pdftest.Options{},
		pdftest.Letter("Introduction"),
		pdftest.Letter("Chapter 2 Cells"),
		pdftest.Letter("Chapter 3 Photosynthesis"),
	)
	c := navigator.New(navigator.WithWidth(612))
	defer c.Close()
	c.Open(data, "bio.pdf")
	settle(t, c)

	res, err := c.Search(context.Background(), "photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Page)
	s := settle(t, c)
	assert.Equal(t, 3, s.Page)
	require.Len(t, s.Frame.Fragments, 1)
	assert.Equal(t, "Chapter 3 Photosynthesis", s.Frame.Fragments[0].Text)
}
