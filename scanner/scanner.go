// Package scanner tokenizes PDF content streams: the operand/operator
// language executed against a page's graphics state. The scanner works on
// bytes the caller already holds in memory; content streams are handed to
// the engine whole, so there is no windowed buffering here.
//
// The scanner never panics on malformed input. Lexical damage is routed
// through a recovery.Strategy so read-only analysis can keep going over
// broken streams.
package scanner

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Oriol-1/modificador-pdf/recovery"
)

type TokenType int

const (
	TokenNumber    TokenType = iota // integer or real
	TokenName                      // /Name with #xx escapes resolved
	TokenString                    // literal (...) or hex <...> string, decoded bytes
	TokenArrayOpen                 // '['
	TokenArrayClose                // ']'
	TokenDictOpen                  // '<<'
	TokenDictClose                 // '>>'
	TokenBoolean                   // true / false
	TokenNull                      // null
	TokenOperator                  // any other keyword: Tj, BT, q, cm, ...
)

func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "number"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenArrayOpen:
		return "array-open"
	case TokenArrayClose:
		return "array-close"
	case TokenDictOpen:
		return "dict-open"
	case TokenDictClose:
		return "dict-close"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	default:
		return "operator"
	}
}

// Token is one lexical unit of a content stream. Numeric and string
// payloads are carried in typed fields rather than an interface value.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string  // name, operator, keyword text
	Num   float64 // numeric value
	Int   int64   // integer value when IsInt
	IsInt bool
	Bool  bool
	Bytes []byte // decoded string payload
}

// Config bounds the scanner against hostile input.
type Config struct {
	// MaxStringLength caps decoded string payloads; zero means unlimited.
	MaxStringLength int
	// Recovery decides how lexical damage is handled. Nil defaults to a
	// lenient strategy that repairs and records.
	Recovery recovery.Strategy
	// Page is carried into recovery locations for diagnostics.
	Page int
}

// Scanner walks one content stream token by token.
type Scanner struct {
	data []byte
	pos  int64
	cfg  Config
	rec  recovery.Strategy
}

// New returns a scanner over data.
func New(data []byte, cfg Config) *Scanner {
	rec := cfg.Recovery
	if rec == nil {
		rec = recovery.NewLenient()
	}
	return &Scanner{data: data, cfg: cfg, rec: rec}
}

// Position returns the current byte offset.
func (s *Scanner) Position() int64 { return s.pos }

// recover asks the strategy what to do with err. A nil return means the
// caller should continue with a best-effort repair already applied.
func (s *Scanner) recover(err error, component string) error {
	action := s.rec.OnError(err, recovery.Location{
		ByteOffset: s.pos,
		Page:       s.cfg.Page,
		Component:  component,
	})
	if action == recovery.ActionFail {
		return err
	}
	return nil
}

// Next returns the next token or io.EOF at the end of the stream.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespaceAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start, Str: "<<"}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start, Str: ">>"}, nil
		}
		// A loose '>' is damage; skip it.
		s.pos++
		if err := s.recover(errors.New("scanner: stray '>'"), "token"); err != nil {
			return Token{}, err
		}
		return s.Next()
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start, Str: "["}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start, Str: "]"}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}':
		// PostScript function braces never belong in a page stream.
		s.pos++
		return Token{Type: TokenOperator, Pos: start, Str: string(c)}, nil
	}
	if isNumberStart(c) {
		return s.scanNumber()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	// Unknown delimiter byte: report and move on.
	s.pos++
	if err := s.recover(errors.Errorf("scanner: unexpected byte 0x%02x", c), "token"); err != nil {
		return Token{}, err
	}
	return s.Next()
}

// whitespace per PDF 32000-1 table 1: NUL, TAB, LF, FF, CR, SP.
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhitespace(c) && !isDelimiter(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (s *Scanner) peek(ahead int64) byte {
	if s.pos+ahead >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+ahead]
}

func (s *Scanner) skipWhitespaceAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if !isRegular(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			hi, okHi := hexVal(s.data[s.pos+1])
			lo, okLo := hexVal(s.data[s.pos+2])
			if okHi && okLo {
				out.WriteByte(hi<<4 | lo)
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Pos: start, Str: out.String()}, nil
}

func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && isRegular(s.data[s.pos]) {
		s.pos++
	}
	raw := string(s.data[start:s.pos])
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Token{Type: TokenNumber, Pos: start, Num: float64(i), Int: i, IsInt: true, Str: raw}, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// "4." and "-.002" are legal PDF reals strconv may reject in odd
		// shapes; one more attempt with a trailing-dot repair.
		f, err = strconv.ParseFloat(raw+"0", 64)
	}
	if err != nil {
		if rerr := s.recover(errors.Wrapf(err, "scanner: bad number %q", raw), "number"); rerr != nil {
			return Token{}, rerr
		}
		return Token{Type: TokenNumber, Pos: start, Num: 0, Str: raw}, nil
	}
	return Token{Type: TokenNumber, Pos: start, Num: f, Str: raw}, nil
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && isRegular(s.data[s.pos]) {
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true":
		return Token{Type: TokenBoolean, Pos: start, Bool: true, Str: kw}, nil
	case "false":
		return Token{Type: TokenBoolean, Pos: start, Bool: false, Str: kw}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start, Str: kw}, nil
	}
	return Token{Type: TokenOperator, Pos: start, Str: kw}, nil
}

// scanLiteralString decodes a (...) string per PDF 7.3.4.2: nested
// parentheses, backslash escapes, octal codes, and line continuations.
func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '\\' {
			s.pos++
			if s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				// Line continuation, swallow optional LF.
				s.pos++
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		}
		if c == '(' {
			depth++
			buf.WriteByte(c)
			s.pos++
			continue
		}
		if c == ')' {
			depth--
			if depth == 0 {
				s.pos++
				return s.stringToken(start, buf.Bytes())
			}
			buf.WriteByte(c)
			s.pos++
			continue
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && buf.Len() > s.cfg.MaxStringLength {
			if err := s.recover(errors.New("scanner: literal string too long"), "literal"); err != nil {
				return Token{}, err
			}
			return s.stringToken(start, buf.Bytes())
		}
	}
	if err := s.recover(errors.New("scanner: unterminated literal string"), "literal"); err != nil {
		return Token{}, err
	}
	return s.stringToken(start, buf.Bytes())
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		// Includes '\\', '(', ')' and any other byte, which stands for itself.
		return c
	}
}

// scanHexString decodes a <...> string, padding an odd final nibble with 0.
func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	closed := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			closed = true
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if _, ok := hexVal(c); !ok {
			if err := s.recover(errors.Errorf("scanner: bad hex digit %q", c), "hex"); err != nil {
				return Token{}, err
			}
			s.pos++
			continue
		}
		nibbles = append(nibbles, c)
		s.pos++
	}
	if !closed {
		if err := s.recover(errors.New("scanner: unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, '0')
	}
	out := make([]byte, 0, len(nibbles)/2)
	for i := 0; i < len(nibbles); i += 2 {
		hi, _ := hexVal(nibbles[i])
		lo, _ := hexVal(nibbles[i+1])
		out = append(out, hi<<4|lo)
	}
	return s.stringToken(start, out)
}

func (s *Scanner) stringToken(start int64, payload []byte) (Token, error) {
	if s.cfg.MaxStringLength > 0 && len(payload) > s.cfg.MaxStringLength {
		payload = payload[:s.cfg.MaxStringLength]
	}
	return Token{Type: TokenString, Pos: start, Bytes: payload}, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
