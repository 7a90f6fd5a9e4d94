package card_test

import (
	"strings"
	"testing"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card/cardtest"
)

func TestDecodePersonalData(t *testing.T) {
	records := cardtest.PersonalDataRecords("MÄNNIK", "MARI-LIIS", "47101010033")
	// NUL and 0xFF are used as filler on some card generations
	records[11] = []byte{0x00, 0x00, 0x00}
	records[12] = []byte{0xFF, 0xFF, 0xFF}
	records[13] = cardtest.Latin1Padded("Õ märkus", 3)
	records[14] = cardtest.Latin1Padded("Märkusÿ", 2)
	records[15] = append(cardtest.Latin1Padded("ÿ ÿ", 0), 0x00)

	pd, err := card.DecodePersonalData(records, "ISO-8859-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"surname with latin-1 letter", pd.Surname(), "MÄNNIK"},
		{"given name 1", pd.GivenName1(), "MARI-LIIS"},
		{"given name 2 empty", pd.GivenName2(), ""},
		{"gender", pd.Gender(), "N"},
		{"citizenship", pd.Citizenship(), "EST"},
		{"date of birth", pd.DateOfBirth(), "01.01.1971"},
		{"personal code", pd.PersonalCode(), "47101010033"},
		{"document number", pd.DocumentNumber(), "AS0012345"},
		{"expiry", pd.ExpiryDate(), "01.01.2030"},
		{"place of birth", pd.PlaceOfBirth(), "EESTI / EST"},
		{"issue date", pd.IssueDate(), "01.01.2025"},
		{"NUL padding", pd.ResidencePermitType(), ""},
		{"0xFF erased record", pd.Remark1(), ""},
		{"space padding", pd.Remark2(), "Õ märkus"},
		{"trailing y with diaeresis kept", pd.Remark3(), "Märkusÿ"},
		{"y with diaeresis before NUL kept", pd.Remark4(), "ÿ ÿ"},
		{"field accessor", pd.Field(6), "47101010033"},
		{"field out of range", pd.Field(16), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLatin1Padded(t *testing.T) {
	got := cardtest.Latin1Padded("Ä", 2)
	if len(got) != 3 || got[0] != 0xC4 {
		t.Errorf("Latin1Padded = % X, want C4 20 20", got)
	}
}

func TestDecodePersonalDataIsIdempotent(t *testing.T) {
	records := cardtest.PersonalDataRecords("TAMM", "JAAN", "37605030299")

	first, err := card.DecodePersonalData(records, card.DefaultPersonalDataEncoding)
	if err != nil {
		t.Fatal(err)
	}
	second, err := card.DecodePersonalData(records, card.DefaultPersonalDataEncoding)
	if err != nil {
		t.Fatal(err)
	}
	for i := range card.PersonalDataRecordCount {
		if first.Field(i) != second.Field(i) {
			t.Errorf("field %d differs: %q vs %q", i, first.Field(i), second.Field(i))
		}
	}
}

func TestDecodePersonalDataErrors(t *testing.T) {
	valid := cardtest.PersonalDataRecords("TAMM", "JAAN", "37605030299")

	oversized := cardtest.PersonalDataRecords("TAMM", "JAAN", "37605030299")
	oversized[3] = []byte("NM")

	tests := []struct {
		name     string
		records  [][]byte
		encoding string
	}{
		{"too few records", valid[:15], card.DefaultPersonalDataEncoding},
		{"too many records", append(append([][]byte{}, valid...), []byte("x")), card.DefaultPersonalDataEncoding},
		{"unknown encoding", valid, "NOT-A-CHARSET"},
		{"multi byte encoding", valid, "UTF-8"},
		{"record longer than layout", oversized, card.DefaultPersonalDataEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := card.DecodePersonalData(tt.records, tt.encoding)
			wantCode(t, err, card.ErrCodeDecoding)
		})
	}
}

func TestPersonalDataString(t *testing.T) {
	pd, err := card.DecodePersonalData(cardtest.PersonalDataRecords("TAMM", "JAAN", "37605030299"), card.DefaultPersonalDataEncoding)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(pd.String(), "\n")
	if len(lines) != card.PersonalDataRecordCount {
		t.Fatalf("got %d lines, want %d", len(lines), card.PersonalDataRecordCount)
	}

	want := map[int]string{
		0:  "Surname: TAMM",
		1:  "Given name 1: JAAN",
		2:  "Given name 2: ",
		6:  "Personal code: 37605030299",
		11: "Residence permit type: ",
		15: "Remark 4: ",
	}
	for i, line := range want {
		if lines[i] != line {
			t.Errorf("line %d = %q, want %q", i, lines[i], line)
		}
	}
}
