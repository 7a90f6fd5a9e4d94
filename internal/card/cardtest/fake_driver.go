package cardtest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"math/big"
	"time"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
)

// FakeDriver implements card.Driver.
//
// A reader with an InsertAfter entry gets its card inserted after that delay, which is
// compared against the wait timeout without sleeping.
type FakeDriver struct {
	Readers     []string
	ListErr     error
	InsertAfter map[string]time.Duration
	ConnectErr  error

	// Respond answers transmitted command APDUs
	Respond func(command []byte) ([]byte, error)

	Transmitted  [][]byte
	Waits        []time.Duration
	Connects     int
	Disconnects  int
	ReleaseCalls int
}

func (d *FakeDriver) ListReaders() ([]string, error) {
	return d.Readers, d.ListErr
}

func (d *FakeDriver) WaitForPresence(reader string, timeout time.Duration) (bool, error) {
	d.Waits = append(d.Waits, timeout)
	after, ok := d.InsertAfter[reader]
	if !ok {
		return false, nil
	}
	return after <= timeout, nil
}

func (d *FakeDriver) Connect(reader string) (card.Conn, error) {
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	d.Connects++
	return &fakeConn{driver: d}, nil
}

func (d *FakeDriver) Release() error {
	d.ReleaseCalls++
	return nil
}

type fakeConn struct {
	driver *FakeDriver
}

func (c *fakeConn) Transmit(command []byte) ([]byte, error) {
	c.driver.Transmitted = append(c.driver.Transmitted, append([]byte{}, command...))
	if c.driver.Respond == nil {
		return nil, errors.New("no responder configured")
	}
	return c.driver.Respond(command)
}

func (c *fakeConn) Disconnect() error {
	c.driver.Disconnects++
	return nil
}

// FakeCard simulates the EstEID file system and key operations at the APDU level.
type FakeCard struct {
	Records  [][]byte
	Files    map[card.FileID][]byte
	PIN1     string
	PIN2     string
	AuthKey  crypto.Signer
	SignKey  crypto.Signer
	Override map[byte]uint16 // status word forced for an instruction byte

	selected card.FileID
	verified map[byte]bool
}

// Respond implements FakeDriver.Respond.
func (c *FakeCard) Respond(command []byte) ([]byte, error) {
	if len(command) < 4 {
		return sw(0x6700), nil
	}
	ins, p1, p2 := command[1], command[2], command[3]
	if status, ok := c.Override[ins]; ok {
		return sw(status), nil
	}
	if c.verified == nil {
		c.verified = make(map[byte]bool)
	}
	data, ne := commandBody(command)

	switch ins {
	case 0xA4:
		if p1 == 0x00 {
			c.selected = card.FileID{0x3F, 0x00}
			return sw(0x9000), nil
		}
		if len(data) != 2 {
			return sw(0x6700), nil
		}
		id := card.FileID{data[0], data[1]}
		if _, ok := c.Files[id]; ok || id == card.FilePersonalData || id == card.FilePersonalDataDir {
			c.selected = id
			return sw(0x9000), nil
		}
		return sw(0x6A82), nil

	case 0xB2:
		if c.selected != card.FilePersonalData {
			return sw(0x6986), nil
		}
		if int(p1) < 1 || int(p1) > len(c.Records) {
			return sw(0x6A83), nil
		}
		return append(append([]byte{}, c.Records[p1-1]...), 0x90, 0x00), nil

	case 0xB0:
		file, ok := c.Files[c.selected]
		if !ok {
			return sw(0x6986), nil
		}
		offset := int(p1)<<8 | int(p2)
		if offset >= len(file) {
			return sw(0x6B00), nil
		}
		end := min(offset+ne, len(file))
		return append(append([]byte{}, file[offset:end]...), 0x90, 0x00), nil

	case 0x20:
		want := c.PIN1
		if p2 == 0x02 {
			want = c.PIN2
		}
		if string(data) != want {
			return sw(0x63C2), nil
		}
		c.verified[p2] = true
		return sw(0x9000), nil

	case 0x22:
		return sw(0x9000), nil

	case 0x88:
		if !c.verified[0x01] {
			return sw(0x6982), nil
		}
		return c.sign(c.AuthKey, data)

	case 0x2A:
		switch {
		case p1 == 0x9E && p2 == 0x9A:
			if !c.verified[0x02] {
				return sw(0x6982), nil
			}
			return c.sign(c.SignKey, data)
		case p1 == 0x80 && p2 == 0x86:
			if !c.verified[0x01] {
				return sw(0x6982), nil
			}
			key, ok := c.AuthKey.(*rsa.PrivateKey)
			if !ok || len(data) < 2 {
				return sw(0x6A80), nil
			}
			plain, err := rsa.DecryptPKCS1v15(rand.Reader, key, data[1:])
			if err != nil {
				return sw(0x6A80), nil
			}
			return append(plain, 0x90, 0x00), nil
		}
	}
	return sw(0x6D00), nil
}

func (c *FakeCard) sign(key crypto.Signer, input []byte) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		// input is a SHA-256 DigestInfo, the digest is the last 32 bytes
		if len(input) < 32 {
			return sw(0x6A80), nil
		}
		sig, err := rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, input[len(input)-32:])
		if err != nil {
			return nil, err
		}
		return append(sig, 0x90, 0x00), nil
	case *ecdsa.PrivateKey:
		r, s, err := ecdsa.Sign(rand.Reader, k, input)
		if err != nil {
			return nil, err
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		out := append(fixed(r, size), fixed(s, size)...)
		return append(out, 0x90, 0x00), nil
	}
	return sw(0x6A80), nil
}

func fixed(n *big.Int, size int) []byte {
	b := make([]byte, size)
	return n.FillBytes(b)
}

// commandBody returns the data field and expected length of a short or extended command APDU.
func commandBody(command []byte) ([]byte, int) {
	body := command[4:]
	switch {
	case len(body) == 0:
		return nil, 0
	case len(body) == 1:
		return nil, leToNe(int(body[0]), 256)
	case body[0] == 0x00 && len(body) >= 3:
		lc := int(body[1])<<8 | int(body[2])
		if len(body) < 3+lc {
			return nil, leToNe(int(body[1])<<8|int(body[2]), 65536)
		}
		return body[3 : 3+lc], 65536
	default:
		lc := int(body[0])
		if len(body) < 1+lc {
			return nil, 0
		}
		ne := 0
		if len(body) > 1+lc {
			ne = leToNe(int(body[1+lc]), 256)
		}
		return body[1 : 1+lc], ne
	}
}

func leToNe(le, zero int) int {
	if le == 0 {
		return zero
	}
	return le
}

func sw(status uint16) []byte {
	return []byte{byte(status >> 8), byte(status)}
}
