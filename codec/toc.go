package codec

import "strings"

// TableOfContents is the CSV index that ties per-sheet resources together
// under a room. Every data field is quote-enclosed with embedded quotes
// doubled, which encoding/csv does not do for fields that need no quoting.
type TableOfContents struct {
	entries []tocEntry
}

type tocEntry struct {
	resourceID string
	title      string
}

// Add appends a row pointing at resourceID.
func (t *TableOfContents) Add(resourceID, title string) {
	t.entries = append(t.entries, tocEntry{resourceID: resourceID, title: title})
}

// Len is the number of sheet rows.
func (t *TableOfContents) Len() int { return len(t.entries) }

// String renders the header row and one newline-terminated row per sheet.
func (t *TableOfContents) String() string {
	var b strings.Builder
	b.WriteString("#url,#title\n")
	for _, e := range t.entries {
		b.WriteString(quoteField("/" + e.resourceID))
		b.WriteByte(',')
		b.WriteString(quoteField(e.title))
		b.WriteByte('\n')
	}
	return b.String()
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
