package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const cellStart = "cell:"

var escaper = strings.NewReplacer(`\`, `\b`, `:`, `\c`, "\n", `\n`)

// EncodeText escapes the reserved characters of a text field: backslash
// becomes \b, colon becomes \c and newline becomes the two characters \n.
// The replacer works in a single left-to-right pass, so no output of one
// rule is ever fed to another.
func EncodeText(s string) string {
	return escaper.Replace(s)
}

// DecodeText reverses EncodeText. Unknown escapes are kept verbatim.
func DecodeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'b':
			b.WriteByte('\\')
		case 'c':
			b.WriteByte(':')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(c)
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}

// MalformedCellError describes a cell whose payload did not match its
// declared kind. The cell is still emitted, as text of the payload's string
// form, so this is a warning rather than a failure.
type MalformedCellError struct {
	Sheet string
	Coord string
	Kind  Kind
	Raw   any
}

func (e *MalformedCellError) Error() string {
	return fmt.Sprintf("sheet %q cell %s: declared %s but payload is %T; encoded as text", e.Sheet, e.Coord, e.Kind, e.Raw)
}

// FormatNumber renders f without grouping separators or locale, using the
// shortest representation that parses back to the same float64.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

// numeric extracts a finite float from the Go types a parser may use for numbers.
func numeric(raw any) (float64, bool) {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawString(raw any) string {
	switch r := raw.(type) {
	case nil:
		return ""
	case string:
		return r
	case float64:
		return FormatNumber(r)
	case bool:
		if r {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(r)
	}
}

// valueFields renders the value part of a cell line, without the leading
// "cell:<coord>:". It returns "" for blank values and malformed=true when the
// payload had to be re-encoded as text.
func valueFields(v Value) (fields string, malformed bool) {
	switch v.Kind {
	case KindBlank:
		if v.Raw == nil {
			return "", false
		}
	case KindNumber:
		if f, ok := numeric(v.Raw); ok {
			return "v:" + FormatNumber(f), false
		}
	case KindBoolean:
		if b, ok := v.Raw.(bool); ok {
			if b {
				return "v:1:vt:logical", false
			}
			return "v:0:vt:logical", false
		}
	case KindError:
		if s, ok := v.Raw.(string); ok {
			return "e:" + EncodeText(s), false
		}
	default:
		return "t:" + EncodeText(rawString(v.Raw)), false
	}
	return "t:" + EncodeText(rawString(v.Raw)), true
}

// cellLine renders one cell line. styleIdx 0 means unstyled. ok is false for
// cells that carry neither a value nor a style, which are omitted.
func cellLine(coord string, v Value, styleIdx int) (line string, malformed, ok bool) {
	fields, malformed := valueFields(v)
	if fields == "" && styleIdx == 0 {
		return "", false, false
	}
	var b strings.Builder
	b.Grow(len(cellStart) + len(coord) + len(fields) + 8)
	b.WriteString(cellStart)
	b.WriteString(coord)
	if fields != "" {
		b.WriteByte(':')
		b.WriteString(fields)
	}
	if styleIdx > 0 {
		b.WriteString(":s:")
		b.WriteString(strconv.Itoa(styleIdx))
	}
	return b.String(), malformed, true
}
