// Package cos reads the Carousel Object System layer of a PDF file:
// tokens, objects, cross-reference data and the page tree.
package cos

// TokenType classifies a lexer token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenDictBegin  // <<
	TokenDictEnd    // >>
	TokenArrayBegin // [
	TokenArrayEnd   // ]
	TokenName
	TokenInteger
	TokenReal
	TokenString
	TokenKeyword // obj, R, true, null, and content stream operators
)

var tokenNames = [...]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenDictBegin:  "<<",
	TokenDictEnd:    ">>",
	TokenArrayBegin: "[",
	TokenArrayEnd:   "]",
	TokenName:       "NAME",
	TokenInteger:    "INTEGER",
	TokenReal:       "REAL",
	TokenString:     "STRING",
	TokenKeyword:    "KEYWORD",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Token is one lexical unit. Value holds the decoded bytes for names and
// strings, the keyword text for keywords, and the literal for numbers.
type Token struct {
	Type  TokenType
	Value string
	Int   int64
	Real  float64
	Pos   int
}

// Is reports whether the token is the keyword kw.
func (t Token) Is(kw string) bool {
	return t.Type == TokenKeyword && t.Value == kw
}
