package graphics

// TextState holds the text parameters of the graphics state.
type TextState struct {
	CharSpace float64 // Tc
	WordSpace float64 // Tw
	HScale    float64 // Tz, as a fraction
	Leading   float64 // TL
	Font      *Font
	FontSize  float64
	Mode      int // Tr
	Rise      float64

	Matrix     Matrix // Tm
	LineMatrix Matrix // Tlm
}

// LineCap is the shape at the open ends of stroked paths.
type LineCap int

const (
	ButtCap LineCap = iota
	RoundCap
	SquareCap
)

// State is the part of the PDF graphics state the renderer uses.
type State struct {
	CTM         Matrix
	Fill        Color
	Stroke      Color
	FillAlpha   float64
	StrokeAlpha float64
	LineWidth   float64
	LineCap     LineCap
	Text        TextState
}

func newState() State {
	return State{
		CTM:         Identity(),
		Fill:        Black,
		Stroke:      Black,
		FillAlpha:   1,
		StrokeAlpha: 1,
		LineWidth:   1,
		Text: TextState{
			HScale:     1,
			Matrix:     Identity(),
			LineMatrix: Identity(),
		},
	}
}

// stack is the q/Q save stack. State holds no slices, so copies are deep.
type stack struct {
	states []State
}

func (s *stack) top() *State { return &s.states[len(s.states)-1] }

func (s *stack) push() { s.states = append(s.states, *s.top()) }

// pop ignores unbalanced Q operators.
func (s *stack) pop() {
	if len(s.states) > 1 {
		s.states = s.states[:len(s.states)-1]
	}
}
