// Package submit posts signed claims to the claim handling service as multipart/form-data.
package submit

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"io"
)

// boundaryBytes random bytes give a 70 character boundary, the longest RFC 2046 allows
const boundaryBytes = 35

var crlf = []byte("\r\n")

// Part is one form field. Filename and ContentType are omitted from the headers when empty.
//
// Values are written as given, they are not escaped.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Content     []byte
}

// NewBoundary returns a random hex multipart boundary.
func NewBoundary() (string, error) {
	b := make([]byte, boundaryBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FormDataContentType is the request Content-Type for the boundary.
func FormDataContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

// Encode writes the parts as a multipart/form-data body:
//
//	--b CRLF headers CRLF CRLF content CRLF   (per part)
//	--b--
//
// With no parts only the closing delimiter is written.
func Encode(w io.Writer, boundary string, parts []Part) error {
	bw := bufio.NewWriter(w)
	delim := "--" + boundary

	for _, p := range parts {
		bw.WriteString(delim)
		bw.Write(crlf)

		bw.WriteString(`Content-Disposition: form-data; name="` + p.Name + `"`)
		if p.Filename != "" {
			bw.WriteString(`; filename="` + p.Filename + `"`)
		}
		bw.Write(crlf)
		if p.ContentType != "" {
			bw.WriteString("Content-Type: " + p.ContentType)
			bw.Write(crlf)
		}
		bw.Write(crlf)

		bw.Write(p.Content)
		bw.Write(crlf)
	}
	bw.WriteString(delim + "--")

	return bw.Flush()
}
