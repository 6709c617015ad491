package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Format is the container format detected from a file's leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatOLE2           // Binary .xls (magic: d0cf11e0a1b11ae1)
	FormatOOXML          // ZIP-based .xlsx (magic: 504b0304)
)

func (f Format) String() string {
	switch f {
	case FormatOLE2:
		return "OLE2"
	case FormatOOXML:
		return "OOXML"
	default:
		return "unknown"
	}
}

// ErrLegacyFormat is returned for binary .xls workbooks, which the loader
// cannot read.
var ErrLegacyFormat = errors.New("legacy binary .xls (OLE2) workbooks are not supported; save the file as .xlsx")

// Detect inspects the first bytes of data.
func Detect(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	// OLE2 Compound Document: d0 cf 11 e0 (full signature: d0cf11e0a1b11ae1)
	if data[0] == 0xd0 && data[1] == 0xcf && data[2] == 0x11 && data[3] == 0xe0 {
		return FormatOLE2
	}
	// ZIP (OOXML): PK\x03\x04
	if data[0] == 0x50 && data[1] == 0x4b && data[2] == 0x03 && data[3] == 0x04 {
		return FormatOOXML
	}
	return FormatUnknown
}

// DetectFile reads the first bytes of a file and returns the detected format.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 8)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	return Detect(buf[:n]), nil
}

// CheckFormat returns nil for OOXML data and a descriptive error otherwise.
func CheckFormat(data []byte) error {
	switch Detect(data) {
	case FormatOOXML:
		return nil
	case FormatOLE2:
		return ErrLegacyFormat
	default:
		return fmt.Errorf("not an .xlsx workbook (unrecognized file signature)")
	}
}
