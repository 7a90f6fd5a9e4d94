package card

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultPersonalDataEncoding is the character set used by the personal data file.
const DefaultPersonalDataEncoding = "ISO-8859-1"

type personalDataField struct {
	label     string
	maxLength int
}

// personal data file layout, record n is personalDataLayout[n-1]
var personalDataLayout = [PersonalDataRecordCount]personalDataField{
	{"Surname", 28},
	{"Given name 1", 15},
	{"Given name 2", 15},
	{"Gender", 1},
	{"Citizenship", 3},
	{"Date of birth", 10},
	{"Personal code", 11},
	{"Document number", 9},
	{"Date of expiry", 10},
	{"Place of birth", 35},
	{"Date of issue", 10},
	{"Residence permit type", 50},
	{"Remark 1", 50},
	{"Remark 2", 50},
	{"Remark 3", 50},
	{"Remark 4", 50},
}

// PersonalData holds the decoded personal data file of an identity card.
type PersonalData struct {
	fields [PersonalDataRecordCount]string
}

// DecodePersonalData decodes the raw personal data records with the named single byte
// character set. Trailing padding is removed from every field.
func DecodePersonalData(records [][]byte, encoding string) (*PersonalData, error) {
	if len(records) != PersonalDataRecordCount {
		return nil, NewDecodingError(fmt.Sprintf("expected %d personal data records, got %d", PersonalDataRecordCount, len(records)))
	}

	cm, err := singleByteCharmap(encoding)
	if err != nil {
		return nil, err
	}

	pd := &PersonalData{}
	decoder := cm.NewDecoder()
	for i, raw := range records {
		layout := personalDataLayout[i]

		trimmed := trimPadding(raw)
		if len(trimmed) > layout.maxLength {
			return nil, NewDecodingError(fmt.Sprintf("record %d (%s) is %d bytes, maximum is %d",
				i+1, layout.label, len(trimmed), layout.maxLength))
		}

		decoded, err := decoder.Bytes(trimmed)
		if err != nil {
			return nil, WrapDecodingError(err, fmt.Sprintf("failed to decode record %d (%s)", i+1, layout.label))
		}
		pd.fields[i] = string(decoded)
	}
	return pd, nil
}

func singleByteCharmap(name string) (*charmap.Charmap, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, WrapDecodingError(err, fmt.Sprintf("unknown character set %q", name))
	}
	cm, ok := enc.(*charmap.Charmap)
	if !ok || cm == nil {
		return nil, NewDecodingError(fmt.Sprintf("character set %q is not a supported single byte encoding", name))
	}
	return cm, nil
}

// trimPadding removes trailing spaces and NUL filler. 0xFF is a letter in
// ISO-8859-1, so it is only treated as filler when the record holds nothing else.
func trimPadding(b []byte) []byte {
	end := len(b)
	for end > 0 {
		switch b[end-1] {
		case ' ', '\t', '\r', '\n', 0x00:
			end--
			continue
		}
		break
	}
	b = b[:end]
	for _, c := range b {
		if c != 0xFF {
			return b
		}
	}
	return nil
}

// Field returns the field at index 0..15. It returns "" for indices out of range.
func (p *PersonalData) Field(index int) string {
	if index < 0 || index >= len(p.fields) {
		return ""
	}
	return p.fields[index]
}

func (p *PersonalData) Surname() string             { return p.fields[0] }
func (p *PersonalData) GivenName1() string          { return p.fields[1] }
func (p *PersonalData) GivenName2() string          { return p.fields[2] }
func (p *PersonalData) Gender() string              { return p.fields[3] }
func (p *PersonalData) Citizenship() string         { return p.fields[4] }
func (p *PersonalData) DateOfBirth() string         { return p.fields[5] }
func (p *PersonalData) PersonalCode() string        { return p.fields[6] }
func (p *PersonalData) DocumentNumber() string      { return p.fields[7] }
func (p *PersonalData) ExpiryDate() string          { return p.fields[8] }
func (p *PersonalData) PlaceOfBirth() string        { return p.fields[9] }
func (p *PersonalData) IssueDate() string           { return p.fields[10] }
func (p *PersonalData) ResidencePermitType() string { return p.fields[11] }
func (p *PersonalData) Remark1() string             { return p.fields[12] }
func (p *PersonalData) Remark2() string             { return p.fields[13] }
func (p *PersonalData) Remark3() string             { return p.fields[14] }
func (p *PersonalData) Remark4() string             { return p.fields[15] }

// String renders every field on its own line as "Label: value".
func (p *PersonalData) String() string {
	lines := make([]string, len(p.fields))
	for i, v := range p.fields {
		lines[i] = personalDataLayout[i].label + ": " + v
	}
	return strings.Join(lines, "\n")
}
