package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// TimeoutMode selects how reads behave when no data is buffered.
type TimeoutMode int

const (
	// TimeoutWait blocks a read until data arrives or the configured
	// timeout elapses.
	TimeoutWait TimeoutMode = iota
	// TimeoutImmediate returns whatever is already buffered without
	// waiting.
	TimeoutImmediate
)

func (m TimeoutMode) String() string {
	switch m {
	case TimeoutWait:
		return "wait"
	case TimeoutImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("timeoutmode(%d)", int(m))
	}
}

// Port is the subset of go.bug.st/serial.Port the channel uses. Tests
// substitute their own implementation.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// allow tests to override the port opener
var openPort = func(device string, mode *serial.Mode) (Port, error) {
	return serial.Open(device, mode)
}

// Channel wraps a serial port with line-oriented reads and switchable
// read-timeout regimes.
type Channel struct {
	device string
	port   Port
}

// Open opens device at 9600 baud, 8 data bits, no parity, one stop bit, no
// flow control, and applies timeout as the initial wait-mode read timeout.
func Open(device string, timeout time.Duration) (*Channel, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrPortOpen, device, err)
	}

	c := &Channel{device: device, port: port}
	if err := c.SetTimeoutMode(TimeoutWait, timeout); err != nil {
		port.Close() //nolint:errcheck
		return nil, err
	}

	return c, nil
}

// String implements the Stringer interface for Channel
func (c *Channel) String() string {
	return fmt.Sprintf("serial:%s", c.device)
}

// SetTimeoutMode reconfigures the read-timeout regime. In wait mode reads
// block for up to timeout; in immediate mode reads return buffered data
// without waiting. Unknown modes indicate a caller bug and are rejected
// before touching the port.
func (c *Channel) SetTimeoutMode(mode TimeoutMode, timeout time.Duration) error {
	if c.port == nil {
		return ErrNotConnected
	}

	var t time.Duration
	switch mode {
	case TimeoutWait:
		t = timeout
	case TimeoutImmediate:
		t = 0
	default:
		return fmt.Errorf("%w: %d", ErrInvalidTimeoutMode, int(mode))
	}

	if err := c.port.SetReadTimeout(t); err != nil {
		return fmt.Errorf("%w (%s): %v", ErrTimeoutConfig, mode, err)
	}
	return nil
}

// ReadLine reads bytes under the current timeout regime until a newline or
// until the port stops producing data, and returns the line with CR, LF,
// and NUL padding stripped. The device terminates lines inconsistently, so
// a line that simply runs out of bytes is still returned as long as it is
// non-empty; a read that produces nothing at all is ErrFailedRead.
func (c *Channel) ReadLine() (string, error) {
	if c.port == nil {
		return "", ErrNotConnected
	}

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			if len(line) > 0 {
				break
			}
			return "", fmt.Errorf("%w: %v", ErrFailedRead, err)
		}
		if n == 0 {
			// timeout expired (wait mode) or buffer drained
			// (immediate mode)
			break
		}
		if buf[0] == '\n' {
			break
		}
		line = append(line, buf[0])
	}

	trimmed := trimLine(line)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty line", ErrFailedRead)
	}
	return string(trimmed), nil
}

// WriteString writes s followed by a carriage return, the device's command
// terminator.
func (c *Channel) WriteString(s string) error {
	if c.port == nil {
		return ErrNotConnected
	}

	data := []byte(s + "\r")
	n, err := c.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedWrite, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrFailedWrite, n, len(data))
	}
	return nil
}

// Close closes the underlying port. The channel is unusable afterwards.
func (c *Channel) Close() error {
	if c.port == nil {
		return ErrNotConnected
	}
	err := c.port.Close()
	c.port = nil
	return err
}

func trimLine(line []byte) []byte {
	start, end := 0, len(line)
	for start < end && isPadding(line[start]) {
		start++
	}
	for end > start && isPadding(line[end-1]) {
		end--
	}
	return line[start:end]
}

func isPadding(b byte) bool {
	return b == '\r' || b == '\n' || b == 0
}
