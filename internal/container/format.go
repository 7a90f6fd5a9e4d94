package container

import (
	"fmt"
	"strings"
)

// Format is a signature container format.
type Format int

const (
	FormatDigiDocXML Format = iota
	FormatBDOC
)

const (
	DefaultDigiDocVersion = "1.3"
	DefaultBDOCVersion    = "1.0"

	mimeTypeDigiDoc    = "application/x-ddoc"
	mimeTypeBDOCPrefix = "application/vnd.bdoc-"
)

// ParseFormat accepts the short names used in configuration ("ddoc", "bdoc")
// as well as the format identifiers written into containers ("DIGIDOC-XML", "BDOC").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ddoc", "digidoc-xml", "digidoc":
		return FormatDigiDocXML, nil
	case "bdoc":
		return FormatBDOC, nil
	default:
		return 0, NewInvalidError(fmt.Sprintf("unknown container format %q", s))
	}
}

// FormatForMIMEType returns the format of a container sent with the given MIME type.
func FormatForMIMEType(mimeType string) (Format, bool) {
	switch {
	case mimeType == mimeTypeDigiDoc:
		return FormatDigiDocXML, true
	case strings.HasPrefix(mimeType, mimeTypeBDOCPrefix):
		return FormatBDOC, true
	default:
		return 0, false
	}
}

func (f Format) String() string {
	switch f {
	case FormatDigiDocXML:
		return "DIGIDOC-XML"
	case FormatBDOC:
		return "BDOC"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extension is the file extension for saved containers ("ddoc" or "bdoc").
func (f Format) Extension() string {
	if f == FormatBDOC {
		return "bdoc"
	}
	return "ddoc"
}

// MIMEType returns the content type for a container of this format and version.
func (f Format) MIMEType(version string) string {
	if f == FormatBDOC {
		return mimeTypeBDOCPrefix + version
	}
	return mimeTypeDigiDoc
}

func (f Format) MarshalText() ([]byte, error) {
	if f != FormatDigiDocXML && f != FormatBDOC {
		return nil, NewInvalidError(fmt.Sprintf("unknown container format %d", int(f)))
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
