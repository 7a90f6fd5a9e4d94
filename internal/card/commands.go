package card

// commands.go holds the fixed command table used to talk to the card.
//
// Every command sent to the card starts from one of the templates below and is completed
// through the builder, so the instruction grammar lives in one place.

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/skythen/apdu"
)

// swSuccess is the only status word accepted as success.
const swSuccess uint16 = 0x9000

// FileID is a two byte file identifier on the card file system.
type FileID [2]byte

func (f FileID) String() string {
	return fmt.Sprintf("%02X%02X", f[0], f[1])
}

// file identifiers used by the EstEID application
var (
	FilePersonalDataDir FileID = FileID{0xEE, 0xEE}
	FilePersonalData    FileID = FileID{0x50, 0x44}
	FileAuthCert        FileID = FileID{0xAA, 0xCE}
	FileSignCert        FileID = FileID{0xDD, 0xCE}
)

// PersonalDataRecordCount is the number of records in the personal data file.
const PersonalDataRecordCount = 16

type commandTemplate struct {
	name string
	cla  byte
	ins  byte
	p1   byte
	p2   byte
}

func (t commandTemplate) String() string {
	return fmt.Sprintf("%s (%02X %02X %02X %02X)", t.name, t.cla, t.ins, t.p1, t.p2)
}

var (
	tmplSelectMF             = commandTemplate{"SELECT MF", 0x00, 0xA4, 0x00, 0x0C}
	tmplSelectDF             = commandTemplate{"SELECT DF", 0x00, 0xA4, 0x01, 0x0C}
	tmplSelectEF             = commandTemplate{"SELECT EF", 0x00, 0xA4, 0x02, 0x0C}
	tmplReadRecord           = commandTemplate{"READ RECORD", 0x00, 0xB2, 0x00, 0x04}
	tmplReadBinary           = commandTemplate{"READ BINARY", 0x00, 0xB0, 0x00, 0x00}
	tmplGetResponse          = commandTemplate{"GET RESPONSE", 0x00, 0xC0, 0x00, 0x00}
	tmplVerifyPIN            = commandTemplate{"VERIFY", 0x00, 0x20, 0x00, 0x00}
	tmplRestoreSecurityEnv   = commandTemplate{"MSE RESTORE", 0x00, 0x22, 0xF3, 0x01}
	tmplInternalAuthenticate = commandTemplate{"INTERNAL AUTHENTICATE", 0x00, 0x88, 0x00, 0x00}
	tmplComputeSignature     = commandTemplate{"PSO COMPUTE DIGITAL SIGNATURE", 0x00, 0x2A, 0x9E, 0x9A}
	tmplDecipher             = commandTemplate{"PSO DECIPHER", 0x00, 0x2A, 0x80, 0x86}
)

// maxShortNe is the largest expected length a short APDU can carry (Le = 0x00).
const maxShortNe = 256

// Command is a complete command APDU ready to be sent to the card.
type Command struct {
	name      string
	capdu     apdu.Capdu
	sensitive bool
}

// Name returns the human readable command name used in logs and errors.
func (c Command) Name() string { return c.name }

// Bytes serializes the command.
func (c Command) Bytes() ([]byte, error) {
	b, err := c.capdu.Bytes()
	if err != nil {
		return nil, WrapProtocolError(err, fmt.Sprintf("failed to encode %s", c.name))
	}
	return b, nil
}

// String returns the command in hex, with the data field masked for commands carrying secrets.
func (c Command) String() string {
	header := prettyHex([]byte{c.capdu.Cla, c.capdu.Ins, c.capdu.P1, c.capdu.P2})
	switch {
	case len(c.capdu.Data) == 0:
		return header
	case c.sensitive:
		return fmt.Sprintf("%s %02X ** (redacted)", header, len(c.capdu.Data))
	default:
		return fmt.Sprintf("%s %02X %s", header, len(c.capdu.Data), prettyHex(c.capdu.Data))
	}
}

type commandBuilder struct {
	cmd Command
}

// newCommand starts a command from a template.
func newCommand(t commandTemplate) *commandBuilder {
	return &commandBuilder{cmd: Command{
		name: t.name,
		capdu: apdu.Capdu{
			Cla: t.cla,
			Ins: t.ins,
			P1:  t.p1,
			P2:  t.p2,
		},
	}}
}

func (b *commandBuilder) P1(p1 byte) *commandBuilder {
	b.cmd.capdu.P1 = p1
	return b
}

func (b *commandBuilder) P2(p2 byte) *commandBuilder {
	b.cmd.capdu.P2 = p2
	return b
}

func (b *commandBuilder) Data(data ...byte) *commandBuilder {
	b.cmd.capdu.Data = append(b.cmd.capdu.Data, data...)
	return b
}

// Expect sets the expected response length (Ne).
func (b *commandBuilder) Expect(ne int) *commandBuilder {
	b.cmd.capdu.Ne = ne
	return b
}

// Sensitive marks the command data as secret so it is never logged.
func (b *commandBuilder) Sensitive() *commandBuilder {
	b.cmd.sensitive = true
	return b
}

func (b *commandBuilder) Build() Command {
	return b.cmd
}

func selectMasterFileCommand() Command {
	return newCommand(tmplSelectMF).Build()
}

func selectDirectoryCommand(id FileID) Command {
	return newCommand(tmplSelectDF).Data(id[:]...).Build()
}

func selectFileCommand(id FileID) Command {
	return newCommand(tmplSelectEF).Data(id[:]...).Build()
}

func readRecordCommand(record byte) Command {
	return newCommand(tmplReadRecord).P1(record).Expect(maxShortNe).Build()
}

func readBinaryCommand(offset uint16, length int) Command {
	var off [2]byte
	binary.BigEndian.PutUint16(off[:], offset)
	return newCommand(tmplReadBinary).P1(off[0]).P2(off[1]).Expect(length).Build()
}

func getResponseCommand(length byte) Command {
	ne := int(length)
	if ne == 0 {
		ne = maxShortNe
	}
	return newCommand(tmplGetResponse).Expect(ne).Build()
}

func verifyPINCommand(reference byte, pin []byte) Command {
	return newCommand(tmplVerifyPIN).P2(reference).Data(pin...).Sensitive().Build()
}

func restoreSecurityEnvCommand() Command {
	return newCommand(tmplRestoreSecurityEnv).Build()
}

func internalAuthenticateCommand(digestInfo []byte) Command {
	return newCommand(tmplInternalAuthenticate).Data(digestInfo...).Expect(maxShortNe).Build()
}

func computeSignatureCommand(digest []byte) Command {
	return newCommand(tmplComputeSignature).Data(digest...).Expect(maxShortNe).Build()
}

func decipherCommand(ciphertext []byte) Command {
	// leading 0x00 is the padding indicator byte
	return newCommand(tmplDecipher).Data(0x00).Data(ciphertext...).Expect(maxShortNe).Build()
}

// Response is a parsed response APDU.
type Response struct {
	Data []byte
	SW   uint16
}

// SW1 returns the first status byte.
func (r Response) SW1() byte { return byte(r.SW >> 8) }

// SW2 returns the second status byte.
func (r Response) SW2() byte { return byte(r.SW) }

// OK reports whether the status word is 0x9000.
func (r Response) OK() bool { return r.SW == swSuccess }

func parseResponse(raw []byte) (Response, error) {
	rapdu, err := apdu.ParseRapdu(raw)
	if err != nil {
		return Response{}, WrapProtocolError(err, "failed to parse response APDU")
	}
	return Response{
		Data: rapdu.Data,
		SW:   uint16(rapdu.SW1)<<8 | uint16(rapdu.SW2),
	}, nil
}

// prettyHex returns the data as space separated hex bytes
func prettyHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
