package pdu

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/larsks/pductl/internal/serialport"
)

// DefaultReadTimeout is the wait-mode read timeout applied when the caller
// does not supply one.
const DefaultReadTimeout = 5 * time.Second

type connState int

const (
	stateDisconnected connState = iota
	stateConnected
	stateInitialized
)

// channel is the line-oriented serial channel the driver talks through.
// Tests substitute a scripted device.
type channel interface {
	SetTimeoutMode(mode serialport.TimeoutMode, timeout time.Duration) error
	ReadLine() (string, error)
	WriteString(s string) error
	Close() error
}

// allow tests to override the channel opener
var openChannel = func(device string, timeout time.Duration) (channel, error) {
	return serialport.Open(device, timeout)
}

// The protocol depends on strict ordering of timeout-mode switches and
// sequential line reads, so at most one connection may be live per process.
var (
	liveMu sync.Mutex
	live   *Connection
)

// Connection owns the serial channel to one PDU. Operations must not be
// issued concurrently; the device protocol is strictly sequential.
type Connection struct {
	device      string
	readTimeout time.Duration
	channel     channel
	state       connState
	sleep       func(time.Duration)
}

// Connect opens the serial channel to the PDU at device and applies the
// wait-mode read timeout. It fails with ErrAlreadyConnected if another
// connection is live in this process.
func Connect(device string, timeout time.Duration) (*Connection, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	c := &Connection{
		device:      device,
		readTimeout: timeout,
		sleep:       time.Sleep,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// String implements the Stringer interface for Connection
func (c *Connection) String() string {
	return fmt.Sprintf("pdu:%s", c.device)
}

func (c *Connection) connect() error {
	liveMu.Lock()
	defer liveMu.Unlock()

	if c.state != stateDisconnected {
		return ErrAlreadyConnected
	}
	if live != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, live.device)
	}

	ch, err := openChannel(c.device, c.readTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedConnection, err)
	}

	c.channel = ch
	c.state = stateConnected
	live = c
	return nil
}

// Disconnect closes the serial channel. The connection is released even if
// the close itself fails; there is nothing useful to do with a handle whose
// close failed.
func (c *Connection) Disconnect() error {
	liveMu.Lock()
	defer liveMu.Unlock()
	return c.disconnectLocked()
}

func (c *Connection) disconnectLocked() error {
	if c.state == stateDisconnected || c.channel == nil {
		return ErrNotConnected
	}

	err := c.channel.Close()
	c.channel = nil
	c.state = stateDisconnected
	if live == c {
		live = nil
	}

	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedDisconnect, err)
	}
	return nil
}

// Initialize brings the device to a known state: both outlets rebooted and
// then switched off. The device ignores the first command it receives after
// power-up, so initialization always starts from a freshly negotiated
// connection and soaks up the ignored command with a null probe.
func (c *Connection) Initialize() error {
	if c.state != stateDisconnected {
		if err := c.Disconnect(); err != nil {
			return err
		}
	}
	if err := c.connect(); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"probe", c.NullProbe},
		{"reboot outlet 1", func() error { return c.Reboot(1) }},
		{"reboot outlet 2", func() error { return c.Reboot(2) }},
		{"switch all outlets off", func() error { return c.SwitchAll(Off) }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			if derr := c.Disconnect(); derr != nil {
				log.Printf("disconnect after failed initialization of %s: %v", c, derr)
			}
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	c.state = stateInitialized
	log.Printf("initialized %s: both outlets off", c)
	return nil
}

// Terminate switches all outlets off and disconnects. If the switch-off
// fails and force is false, the connection stays open and the switch error
// is returned: dropping the connection would leave the outlets in an
// unknown state with no way to control them. With force true the
// disconnect proceeds anyway and the suppressed switch error is logged.
func (c *Connection) Terminate(force bool) error {
	swErr := c.SwitchAll(Off)
	if swErr != nil && !force {
		return swErr
	}
	if swErr != nil {
		log.Printf("terminating %s with outlets in unknown state: %v", c, swErr)
	}

	if err := c.Disconnect(); err != nil {
		return err
	}
	return swErr
}
