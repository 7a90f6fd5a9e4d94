package card

import (
	"fmt"
	"log/slog"
	"time"
)

// maxChainedResponse bounds the data collected through GET RESPONSE for one command
const maxChainedResponse = 64 << 10

// DefaultCardTimeout is how long WaitForCard waits when the caller passes a zero timeout.
const DefaultCardTimeout = 10 * time.Second

// Terminal is a card reader discovered by the driver.
type Terminal struct {
	Index int
	Name  string
}

// Transport enumerates terminals and opens sessions to the cards inserted in them.
type Transport struct {
	driver              Driver
	logger              *slog.Logger
	defaultTimeout      time.Duration
	getResponseChaining bool
}

type TransportOption func(*Transport)

// WithDefaultTimeout overrides the card presence timeout used when callers pass zero.
func WithDefaultTimeout(timeout time.Duration) TransportOption {
	return func(t *Transport) {
		if timeout > 0 {
			t.defaultTimeout = timeout
		}
	}
}

// WithGetResponseChaining makes sessions follow a 61XX status word with GET RESPONSE
// before the status word is checked. Off by default.
func WithGetResponseChaining(enabled bool) TransportOption {
	return func(t *Transport) {
		t.getResponseChaining = enabled
	}
}

func NewTransport(driver Driver, logger *slog.Logger, opts ...TransportOption) *Transport {
	t := &Transport{
		driver:         driver,
		logger:         logger,
		defaultTimeout: DefaultCardTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Terminals returns the attached readers in driver order.
// It fails with ErrCodeHardwareUnavailable if the driver fails or no reader is attached.
func (t *Transport) Terminals() ([]Terminal, error) {
	names, err := t.driver.ListReaders()
	if err != nil {
		return nil, WrapHardwareUnavailableError(err, "failed to list card terminals")
	}
	if len(names) == 0 {
		return nil, NewHardwareUnavailableError("no card terminals found")
	}

	terminals := make([]Terminal, len(names))
	for i, name := range names {
		terminals[i] = Terminal{Index: i, Name: name}
	}
	return terminals, nil
}

func (t *Transport) terminal(index int) (Terminal, error) {
	terminals, err := t.Terminals()
	if err != nil {
		return Terminal{}, err
	}
	if index < 0 || index >= len(terminals) {
		return Terminal{}, NewIndexOutOfRangeError(
			fmt.Sprintf("terminal index %d out of range, %d terminal(s) found", index, len(terminals)))
	}
	return terminals[index], nil
}

// WaitForCard blocks until a card is present in the terminal at index.
// A zero timeout uses the transport default. There is no retry after the timeout expires.
func (t *Transport) WaitForCard(index int, timeout time.Duration) error {
	_, err := t.waitForCard(index, timeout)
	return err
}

func (t *Transport) waitForCard(index int, timeout time.Duration) (Terminal, error) {
	terminal, err := t.terminal(index)
	if err != nil {
		return Terminal{}, err
	}
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	t.logger.Debug("waiting for card",
		slog.String("terminal", terminal.Name),
		slog.Duration("timeout", timeout))

	present, err := t.driver.WaitForPresence(terminal.Name, timeout)
	if err != nil {
		return Terminal{}, WrapHardwareUnavailableError(err, fmt.Sprintf("failed to query terminal %s", terminal.Name))
	}
	if !present {
		return Terminal{}, NewTimeoutError(fmt.Sprintf("no card inserted in terminal %s within %s", terminal.Name, timeout))
	}
	return terminal, nil
}

// Connect re-checks card presence and opens an exclusive session to the card at index.
// The caller owns the session and must Close it.
func (t *Transport) Connect(index int) (*Session, error) {
	terminal, err := t.waitForCard(index, 0)
	if err != nil {
		return nil, err
	}

	conn, err := t.driver.Connect(terminal.Name)
	if err != nil {
		return nil, WrapHardwareUnavailableError(err, fmt.Sprintf("failed to connect to card in %s", terminal.Name))
	}

	t.logger.Debug("card session opened", slog.String("terminal", terminal.Name))

	return &Session{
		conn:     conn,
		terminal: terminal,
		logger:   t.logger,
		chaining: t.getResponseChaining,
	}, nil
}

// Session is an open connection to a single card.
// A session is not safe for concurrent use.
type Session struct {
	conn     Conn
	terminal Terminal
	logger   *slog.Logger
	chaining bool
	closed   bool
}

func (s *Session) Terminal() Terminal { return s.terminal }

// Transmit sends the command and returns the response.
// Any status word other than 0x9000 fails with ErrCodeProtocol. The response is returned
// with the error so callers can inspect the status word.
func (s *Session) Transmit(cmd Command) (Response, error) {
	if s.closed {
		return Response{}, NewProtocolError("card session is closed")
	}

	resp, err := s.exchange(cmd)
	if err != nil {
		return Response{}, err
	}

	for s.chaining && resp.SW1() == 0x61 {
		if len(resp.Data) > maxChainedResponse {
			return Response{}, NewProtocolError(fmt.Sprintf("%s response exceeds %d bytes", cmd.Name(), maxChainedResponse))
		}
		next, err := s.exchange(getResponseCommand(resp.SW2()))
		if err != nil {
			return Response{}, err
		}
		next.Data = append(resp.Data, next.Data...)
		resp = next
	}

	if !resp.OK() {
		return resp, WrapProtocolError(&StatusError{Command: cmd.Name(), SW: resp.SW}, "card rejected command")
	}
	return resp, nil
}

func (s *Session) exchange(cmd Command) (Response, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return Response{}, err
	}

	out, err := s.conn.Transmit(raw)
	if err != nil {
		return Response{}, WrapHardwareUnavailableError(err, fmt.Sprintf("failed to transmit %s", cmd.Name()))
	}

	resp, err := parseResponse(out)
	if err != nil {
		return Response{}, err
	}

	s.logger.Debug("apdu",
		slog.String("terminal", s.terminal.Name),
		slog.String("command", cmd.String()),
		slog.String("sw", fmt.Sprintf("%04X", resp.SW)),
		slog.Int("data_length", len(resp.Data)))

	return resp, nil
}

// Close disconnects from the card. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Disconnect(); err != nil {
		return WrapHardwareUnavailableError(err, "failed to disconnect from card")
	}
	s.logger.Debug("card session closed", slog.String("terminal", s.terminal.Name))
	return nil
}
