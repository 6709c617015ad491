package codec

import (
	"strconv"
	"strings"
)

// Attrs serializes d into the canonical attribute string used both as the
// style line payload and as the interning key. Attributes appear in a fixed
// order and absent ones contribute nothing, so an explicit "not bold" and an
// unset bold flag produce the same string.
func (d StyleDescriptor) Attrs() string {
	var b strings.Builder
	if d.Bold {
		b.WriteString("font-weight:bold;")
	}
	if d.Italic {
		b.WriteString("font-style:italic;")
	}
	if d.TextColor != "" {
		b.WriteString("color:#")
		b.WriteString(d.TextColor)
		b.WriteByte(';')
	}
	if d.FillColor != "" {
		b.WriteString("background-color:#")
		b.WriteString(d.FillColor)
		b.WriteByte(';')
	}
	if d.HorizontalAlign.Valid() {
		b.WriteString("text-align:")
		b.WriteString(string(d.HorizontalAlign))
		b.WriteByte(';')
	}
	return b.String()
}

// ParseAttrs reads an attribute string back into a descriptor. Unknown
// attributes are ignored.
func ParseAttrs(s string) StyleDescriptor {
	var d StyleDescriptor
	for _, decl := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "font-weight":
			d.Bold = value == "bold"
		case "font-style":
			d.Italic = value == "italic"
		case "color":
			d.TextColor = strings.TrimPrefix(value, "#")
		case "background-color":
			d.FillColor = strings.TrimPrefix(value, "#")
		case "text-align":
			if a := HAlign(value); a.Valid() {
				d.HorizontalAlign = a
			}
		}
	}
	return d
}

// StyleTable assigns 1-based indices to attribute strings in first-seen
// order. A table lives for one emission call and only grows.
type StyleTable struct {
	index map[string]int
	attrs []string
}

// NewStyleTable returns an empty table.
func NewStyleTable() *StyleTable {
	return &StyleTable{index: make(map[string]int)}
}

// Intern returns the index for d, allocating the next one if its attribute
// string is new. Descriptors with an empty attribute string are never
// interned and report ok=false.
func (t *StyleTable) Intern(d StyleDescriptor) (idx int, ok bool) {
	return t.InternAttrs(d.Attrs())
}

// InternAttrs is Intern for an already serialized attribute string.
func (t *StyleTable) InternAttrs(attrs string) (idx int, ok bool) {
	if attrs == "" {
		return 0, false
	}
	if idx, ok := t.index[attrs]; ok {
		return idx, true
	}
	t.attrs = append(t.attrs, attrs)
	idx = len(t.attrs)
	t.index[attrs] = idx
	return idx, true
}

// Len is the number of interned styles.
func (t *StyleTable) Len() int { return len(t.attrs) }

// Attrs returns the attribute string for a 1-based index, or "" if unknown.
func (t *StyleTable) Attrs(idx int) string {
	if idx < 1 || idx > len(t.attrs) {
		return ""
	}
	return t.attrs[idx-1]
}

// Lines renders one "style:<index>:<attrs>" line per entry in ascending index order.
func (t *StyleTable) Lines() []string {
	out := make([]string, len(t.attrs))
	for i, a := range t.attrs {
		out[i] = "style:" + strconv.Itoa(i+1) + ":" + a
	}
	return out
}
