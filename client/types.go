package client

// ErrorResponse is the JSON error shape some sheet servers return.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ContentKind tags an upload payload with how the server should parse it.
type ContentKind string

const (
	// ContentInterchange is a sheet-interchange stream.
	ContentInterchange ContentKind = "interchange"
	// ContentTabular is comma-separated text (the room's table of contents).
	ContentTabular ContentKind = "tabular"
)

// MIMEType is the Content-Type sent with the payload.
func (k ContentKind) MIMEType() string {
	switch k {
	case ContentTabular:
		return "text/csv"
	default:
		return "text/x-socialcalc"
	}
}

// UploadUnit is one resource write: a sheet stream or the table of contents.
type UploadUnit struct {
	ResourceID string
	Payload    []byte
	Kind       ContentKind
	// Title is the sheet name for sheet units, empty for the TOC.
	Title string
}

// UploadResult reports what reached the server.
type UploadResult struct {
	Room       string   `json:"room"`
	Succeeded  []string `json:"succeeded"`
	Skipped    []string `json:"skipped,omitempty"`
	TOCWritten bool     `json:"toc_written"`
}
