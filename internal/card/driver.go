package card

import (
	"errors"
	"time"

	"github.com/ebfe/scard"
)

// Driver is the low level reader access used by the Transport.
// NewPCSCDriver returns the PC/SC implementation, tests supply their own.
type Driver interface {
	// ListReaders returns the names of the attached readers in driver order.
	ListReaders() ([]string, error)

	// WaitForPresence blocks until a card is present in the reader or the timeout expires.
	// It returns false, nil on timeout.
	WaitForPresence(reader string, timeout time.Duration) (bool, error)

	// Connect opens an exclusive connection to the card in the reader.
	Connect(reader string) (Conn, error)

	// Release frees the driver context.
	Release() error
}

// Conn is an open connection to a card.
type Conn interface {
	Transmit(command []byte) ([]byte, error)
	Disconnect() error
}

type pcscDriver struct {
	ctx *scard.Context
}

// NewPCSCDriver establishes a PC/SC context.
func NewPCSCDriver() (Driver, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, WrapHardwareUnavailableError(err, "failed to establish PC/SC context")
	}
	return &pcscDriver{ctx: ctx}, nil
}

func (d *pcscDriver) ListReaders() ([]string, error) {
	readers, err := d.ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, nil
	}
	return readers, err
}

func (d *pcscDriver) WaitForPresence(reader string, timeout time.Duration) (bool, error) {
	states := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	deadline := time.Now().Add(timeout)

	for {
		remaining := max(time.Until(deadline), 0)

		err := d.ctx.GetStatusChange(states, remaining)
		if errors.Is(err, scard.ErrTimeout) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if states[0].EventState&scard.StatePresent != 0 {
			return true, nil
		}
		if remaining == 0 {
			return false, nil
		}
		states[0].CurrentState = states[0].EventState
	}
}

func (d *pcscDriver) Connect(reader string) (Conn, error) {
	c, err := d.ctx.Connect(reader, scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		return nil, err
	}
	return &pcscConn{card: c}, nil
}

func (d *pcscDriver) Release() error {
	return d.ctx.Release()
}

type pcscConn struct {
	card *scard.Card
}

func (c *pcscConn) Transmit(command []byte) ([]byte, error) {
	return c.card.Transmit(command)
}

func (c *pcscConn) Disconnect() error {
	return c.card.Disconnect(scard.ResetCard)
}
