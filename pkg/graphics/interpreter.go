package graphics

import (
	"context"
	"errors"
	"image"
	"math"
	"strings"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
)

const (
	maxFormDepth = 8
	// operators executed between two cancellation checks
	checkEvery = 64
)

// Glyph is one shown character. Trm maps glyph space, scaled so that
// one unit is the font size, to default user space.
type Glyph struct {
	Text    string
	Trm     Matrix
	Advance float64
}

// TextRun is the text shown by one text-showing operator, in default
// user space (PDF units, origin bottom left).
type TextRun struct {
	Text     string
	Glyphs   []Glyph
	FontName string
	Size     float64
	X, Y     float64 // baseline origin of the first glyph
	Width    float64
	Mode     int
	Color    Color
}

// Interpreter executes content streams and reports what they paint.
// Coordinates passed to the callbacks are in default user space.
type Interpreter struct {
	res       Resolver
	resources cos.Dict
	stack     stack
	path      Path
	fonts     map[any]*Font
	depth     int
	ops       int

	OnFill   func(p *Path, st *State, rule FillRule)
	OnStroke func(p *Path, st *State)
	OnText   func(run TextRun)
	// OnImage receives an image and the matrix mapping the unit square
	// onto the page.
	OnImage func(img image.Image, m Matrix, st *State)
	// Widths estimates the advance of text in 1/1000 em for fonts that
	// carry no width information.
	Widths func(text string) float64
}

// NewInterpreter returns an interpreter resolving objects through res.
func NewInterpreter(res Resolver) *Interpreter {
	return &Interpreter{res: res, fonts: map[any]*Font{}}
}

// Run executes content with the given resource dictionary. Malformed
// operators are skipped. It returns ctx.Err() if ctx is done before
// the stream is finished.
func (in *Interpreter) Run(ctx context.Context, content []byte, resources cos.Dict) error {
	in.stack = stack{states: []State{newState()}}
	in.path.Reset()
	in.resources = resources
	return in.run(ctx, content)
}

func (in *Interpreter) run(ctx context.Context, content []byte) error {
	lex := cos.NewLexer(content)
	p := cos.NewParser(lex, nil)
	var operands []cos.Object
	for {
		o, err := p.ParseObject()
		if errors.Is(err, cos.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			operands = operands[:0]
			continue
		}
		kw, ok := o.(cos.Keyword)
		if !ok {
			operands = append(operands, o)
			continue
		}

		in.ops++
		if in.ops%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if kw == "BI" {
			in.skipInlineImage(p, lex)
		} else if err := in.exec(ctx, string(kw), operands); err != nil {
			return err
		}
		operands = operands[:0]
	}
}

// skipInlineImage consumes "BI <dict> ID <data> EI".
func (in *Interpreter) skipInlineImage(p *cos.Parser, lex *cos.Lexer) {
	for {
		o, err := p.ParseObject()
		if err != nil {
			return
		}
		if kw, ok := o.(cos.Keyword); ok && kw == "ID" {
			lex.InlineImageData()
			return
		}
	}
}

func nums(ops []cos.Object, n int) ([]float64, bool) {
	if len(ops) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range ops[len(ops)-n:] {
		f, ok := cos.Number(o)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func numbers(ops []cos.Object) []float64 {
	var out []float64
	for _, o := range ops {
		if f, ok := cos.Number(o); ok {
			out = append(out, f)
		}
	}
	return out
}

func (in *Interpreter) exec(ctx context.Context, op string, args []cos.Object) error {
	st := in.stack.top()
	ts := &st.Text

	switch op {
	case "q":
		in.stack.push()
	case "Q":
		in.stack.pop()
	case "cm":
		if v, ok := nums(args, 6); ok {
			st.CTM = Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(st.CTM)
		}
	case "w":
		if v, ok := nums(args, 1); ok {
			st.LineWidth = v[0]
		}
	case "J":
		if v, ok := nums(args, 1); ok && v[0] >= 0 && v[0] <= 2 {
			st.LineCap = LineCap(v[0])
		}
	case "gs":
		in.extGState(args, st)

	case "g":
		if v, ok := nums(args, 1); ok {
			st.Fill = Gray(v[0])
		}
	case "G":
		if v, ok := nums(args, 1); ok {
			st.Stroke = Gray(v[0])
		}
	case "rg":
		if v, ok := nums(args, 3); ok {
			st.Fill = RGB(v[0], v[1], v[2])
		}
	case "RG":
		if v, ok := nums(args, 3); ok {
			st.Stroke = RGB(v[0], v[1], v[2])
		}
	case "k":
		if v, ok := nums(args, 4); ok {
			st.Fill = CMYK(v[0], v[1], v[2], v[3])
		}
	case "K":
		if v, ok := nums(args, 4); ok {
			st.Stroke = CMYK(v[0], v[1], v[2], v[3])
		}
	case "cs":
		st.Fill = Black
	case "CS":
		st.Stroke = Black
	case "sc", "scn":
		st.Fill = fromComponents(numbers(args))
	case "SC", "SCN":
		st.Stroke = fromComponents(numbers(args))

	case "m":
		if v, ok := nums(args, 2); ok {
			in.path.MoveTo(v[0], v[1])
		}
	case "l":
		if v, ok := nums(args, 2); ok {
			in.path.LineTo(v[0], v[1])
		}
	case "c":
		if v, ok := nums(args, 6); ok {
			in.path.CurveTo(v[0], v[1], v[2], v[3], v[4], v[5])
		}
	case "v":
		if v, ok := nums(args, 4); ok {
			c := in.path.Current()
			in.path.CurveTo(c.X, c.Y, v[0], v[1], v[2], v[3])
		}
	case "y":
		if v, ok := nums(args, 4); ok {
			in.path.CurveTo(v[0], v[1], v[2], v[3], v[2], v[3])
		}
	case "h":
		in.path.Close()
	case "re":
		if v, ok := nums(args, 4); ok {
			in.path.Rect(v[0], v[1], v[2], v[3])
		}

	case "S":
		in.paint(st, false, true, NonZero)
	case "s":
		in.path.Close()
		in.paint(st, false, true, NonZero)
	case "f", "F":
		in.paint(st, true, false, NonZero)
	case "f*":
		in.paint(st, true, false, EvenOdd)
	case "B":
		in.paint(st, true, true, NonZero)
	case "B*":
		in.paint(st, true, true, EvenOdd)
	case "b":
		in.path.Close()
		in.paint(st, true, true, NonZero)
	case "b*":
		in.path.Close()
		in.paint(st, true, true, EvenOdd)
	case "n":
		in.path.Reset()
	case "W", "W*":
		// clipping is not applied; the path stays for the next painting operator

	case "BT":
		ts.Matrix, ts.LineMatrix = Identity(), Identity()
	case "ET":
	case "Tc":
		if v, ok := nums(args, 1); ok {
			ts.CharSpace = v[0]
		}
	case "Tw":
		if v, ok := nums(args, 1); ok {
			ts.WordSpace = v[0]
		}
	case "Tz":
		if v, ok := nums(args, 1); ok {
			ts.HScale = v[0] / 100
		}
	case "TL":
		if v, ok := nums(args, 1); ok {
			ts.Leading = v[0]
		}
	case "Tf":
		if len(args) >= 2 {
			if name, ok := args[len(args)-2].(cos.Name); ok {
				ts.Font = in.font(name)
			}
			ts.FontSize, _ = cos.Number(args[len(args)-1])
		}
	case "Tr":
		if v, ok := nums(args, 1); ok {
			ts.Mode = int(v[0])
		}
	case "Ts":
		if v, ok := nums(args, 1); ok {
			ts.Rise = v[0]
		}
	case "Td":
		if v, ok := nums(args, 2); ok {
			ts.newLine(v[0], v[1])
		}
	case "TD":
		if v, ok := nums(args, 2); ok {
			ts.Leading = -v[1]
			ts.newLine(v[0], v[1])
		}
	case "Tm":
		if v, ok := nums(args, 6); ok {
			ts.Matrix = Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			ts.LineMatrix = ts.Matrix
		}
	case "T*":
		ts.newLine(0, -ts.Leading)
	case "Tj":
		if s, ok := lastString(args); ok {
			in.show(st, cos.Array{s})
		}
	case "'":
		ts.newLine(0, -ts.Leading)
		if s, ok := lastString(args); ok {
			in.show(st, cos.Array{s})
		}
	case "\"":
		if v, ok := nums(args[:max(0, len(args)-1)], 2); ok {
			ts.WordSpace, ts.CharSpace = v[0], v[1]
		}
		ts.newLine(0, -ts.Leading)
		if s, ok := lastString(args); ok {
			in.show(st, cos.Array{s})
		}
	case "TJ":
		if len(args) > 0 {
			if arr, ok := args[len(args)-1].(cos.Array); ok {
				in.show(st, arr)
			}
		}

	case "Do":
		if len(args) > 0 {
			if name, ok := args[len(args)-1].(cos.Name); ok {
				return in.xobject(ctx, name, st)
			}
		}
	}
	return nil
}

func lastString(args []cos.Object) (cos.String, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[len(args)-1].(cos.String)
	return s, ok
}

func (ts *TextState) newLine(tx, ty float64) {
	ts.LineMatrix = Translate(tx, ty).Multiply(ts.LineMatrix)
	ts.Matrix = ts.LineMatrix
}

func (in *Interpreter) paint(st *State, fill, stroke bool, rule FillRule) {
	if !in.path.Empty() {
		p := in.path.Transform(st.CTM)
		if fill && in.OnFill != nil {
			in.OnFill(p, st, rule)
		}
		if stroke && in.OnStroke != nil {
			in.OnStroke(p, st)
		}
	}
	in.path.Reset()
}

func (in *Interpreter) resource(kind, name cos.Name) (cos.Object, cos.Object) {
	group, err := in.res.ResolveDict(in.resources.Get(kind))
	if err != nil {
		return nil, nil
	}
	raw := group.Get(name)
	v, err := in.res.Resolve(raw)
	if err != nil {
		return raw, nil
	}
	return raw, v
}

func (in *Interpreter) font(name cos.Name) *Font {
	raw, v := in.resource("Font", name)
	var key any = "name:" + string(name)
	if ref, ok := raw.(cos.Reference); ok {
		key = ref
	}
	if f, ok := in.fonts[key]; ok {
		return f
	}
	d, _ := v.(cos.Dict)
	if d == nil {
		d = cos.Dict{}
	}
	f := LoadFont(in.res, d)
	in.fonts[key] = f
	return f
}

func (in *Interpreter) extGState(args []cos.Object, st *State) {
	if len(args) == 0 {
		return
	}
	name, ok := args[len(args)-1].(cos.Name)
	if !ok {
		return
	}
	_, v := in.resource("ExtGState", name)
	d, ok := v.(cos.Dict)
	if !ok {
		return
	}
	if a, ok := d.Number("ca"); ok {
		st.FillAlpha = a
	}
	if a, ok := d.Number("CA"); ok {
		st.StrokeAlpha = a
	}
	if w, ok := d.Number("LW"); ok {
		st.LineWidth = w
	}
}

// show lays out a TJ-style array of strings and kerning adjustments.
func (in *Interpreter) show(st *State, items cos.Array) {
	ts := &st.Text
	font := ts.Font
	if font == nil {
		font = &Font{widths: map[int]float64{}}
	}

	run := TextRun{FontName: font.Name, Mode: ts.Mode, Color: st.Fill}
	var text strings.Builder
	startX, startY := 0.0, 0.0
	first := true

	for _, item := range items {
		if adj, ok := cos.Number(item); ok {
			tx := -adj / 1000 * ts.FontSize * ts.HScale
			ts.Matrix = Translate(tx, 0).Multiply(ts.Matrix)
			// a large negative adjustment is how many generators encode a word gap
			if adj < -200 && text.Len() > 0 && !strings.HasSuffix(text.String(), " ") {
				text.WriteByte(' ')
			}
			continue
		}
		s, ok := item.(cos.String)
		if !ok {
			continue
		}
		for _, ch := range font.Decode(string(s)) {
			trm := Matrix{ts.FontSize * ts.HScale, 0, 0, ts.FontSize, 0, ts.Rise}.
				Multiply(ts.Matrix).Multiply(st.CTM)
			if first {
				startX, startY = trm.Apply(0, 0)
				run.Size = trm.ScaleY()
				first = false
			}

			w := ch.Width
			if w == 0 {
				w = 500
				if in.Widths != nil {
					w = in.Widths(ch.Text)
				}
			}
			tx := w / 1000 * ts.FontSize
			tx += ts.CharSpace
			if ch.Space {
				tx += ts.WordSpace
			}
			tx *= ts.HScale

			ex, ey := Translate(tx, 0).Multiply(ts.Matrix).Multiply(st.CTM).Apply(0, ts.Rise)
			gx, gy := trm.Apply(0, 0)
			run.Glyphs = append(run.Glyphs, Glyph{Text: ch.Text, Trm: trm, Advance: math.Hypot(ex-gx, ey-gy)})
			text.WriteString(ch.Text)
			ts.Matrix = Translate(tx, 0).Multiply(ts.Matrix)
		}
	}

	if first || in.OnText == nil {
		return
	}
	endX, endY := Matrix{1, 0, 0, 1, 0, ts.Rise}.Multiply(ts.Matrix).Multiply(st.CTM).Apply(0, 0)
	run.Text = text.String()
	run.X, run.Y = startX, startY
	run.Width = math.Hypot(endX-startX, endY-startY)
	in.OnText(run)
}

func (in *Interpreter) xobject(ctx context.Context, name cos.Name, st *State) error {
	_, v := in.resource("XObject", name)
	s, ok := v.(*cos.Stream)
	if !ok {
		return nil
	}
	switch sub, _ := s.Dict.Name("Subtype"); sub {
	case "Image":
		if in.OnImage == nil {
			return nil
		}
		img, err := decodeImage(in.res, s, st.Fill)
		if err != nil {
			return nil
		}
		in.OnImage(img, st.CTM, st)
	case "Form":
		if in.depth >= maxFormDepth {
			return nil
		}
		content, err := in.res.Decode(s)
		if err != nil {
			return nil
		}
		saved := in.resources
		if r, err := in.res.ResolveDict(s.Dict.Get("Resources")); err == nil {
			in.resources = r
		}
		in.stack.push()
		top := in.stack.top()
		if m, ok := s.Dict.Array("Matrix"); ok {
			if v, ok := cos.Numbers(m); ok && len(v) == 6 {
				top.CTM = Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(top.CTM)
			}
		}
		savedPath := in.path
		in.path = Path{}
		in.depth++
		err = in.run(ctx, content)
		in.depth--
		in.path = savedPath
		in.stack.pop()
		in.resources = saved
		return err
	}
	return nil
}
