package pdu

import (
	"fmt"
	"log"

	"github.com/larsks/pductl/internal/serialport"
)

// execute runs one command exchange with the device: write the framed
// command, advance past the echoed command line, collect the response under
// an immediate read timeout, dwell for the command's settle delay, and
// restore the wait-mode timeout for the next exchange.
//
// If the exchange fails partway through, the channel may be left in
// immediate mode; the next execute reapplies wait mode before writing, so
// callers need not repair it.
func (c *Connection) execute(code CommandCode, arg1, arg2 string) (string, error) {
	if c.channel == nil || c.state == stateDisconnected {
		return "", ErrNotConnected
	}

	spec, ok := commandTable[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, string(code))
	}

	cmd, err := buildCommand(code, arg1, arg2)
	if err != nil {
		return "", err
	}

	if err := c.channel.SetTimeoutMode(serialport.TimeoutWait, c.readTimeout); err != nil {
		return "", err
	}

	if err := c.channel.WriteString(cmd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedWrite, err)
	}

	// The device echoes the command line back, frequently with dropped
	// characters, so the echo is read only to advance past it and is
	// never validated. The null probe omits the echo entirely; a failed
	// read there is expected and ignored.
	if _, err := c.channel.ReadLine(); err != nil && code != cmdNull {
		return "", fmt.Errorf("%w: %v", ErrFailedRead, err)
	}

	// Response lines are not reliably newline-terminated. Immediate mode
	// collects whatever the device buffered instead of waiting out the
	// full read timeout on a missing terminator.
	if err := c.channel.SetTimeoutMode(serialport.TimeoutImmediate, 0); err != nil {
		return "", err
	}

	resp, err := c.channel.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	if code == cmdNull {
		// the interactive prompt is buried one line further down
		resp, err = c.channel.ReadLine()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
		}
	}

	if spec.settle > 0 {
		c.sleep(spec.settle)
	}

	// A restoration failure must not discard the response already
	// captured; report it and let the next exchange reapply wait mode.
	if err := c.channel.SetTimeoutMode(serialport.TimeoutWait, c.readTimeout); err != nil {
		log.Printf("failed to restore wait mode on %s: %v", c.device, err)
	}

	return resp, nil
}
