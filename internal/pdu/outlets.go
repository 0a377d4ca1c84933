package pdu

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// NullProbe sends the null command and verifies that the device answers
// with its interactive prompt, forcing it to a ready state after power-up.
func (c *Connection) NullProbe() error {
	resp, err := c.execute(cmdNull, "", "")
	if err != nil {
		return err
	}
	if !strings.HasSuffix(resp, ">") {
		return fmt.Errorf("%w: expected prompt, got %q", ErrUnknownResponse, resp)
	}
	return nil
}

// GetStatus reports the power state of both outlets.
func (c *Connection) GetStatus() (SwitchState, SwitchState, error) {
	resp, err := c.execute(cmdGetStatus, "", "")
	if err != nil {
		return Off, Off, err
	}

	if len(resp) != NumOutlets {
		return Off, Off, fmt.Errorf("%w: status %q", ErrUnknownResponse, resp)
	}
	states := make([]SwitchState, NumOutlets)
	for i := 0; i < NumOutlets; i++ {
		switch resp[i] {
		case '0':
			states[i] = Off
		case '1':
			states[i] = On
		default:
			return Off, Off, fmt.Errorf("%w: status %q", ErrUnknownResponse, resp)
		}
	}

	return states[0], states[1], nil
}

// Reboot power-cycles one outlet. The settle delay covers the device's
// roughly two second reboot cycle.
func (c *Connection) Reboot(outlet int) error {
	if err := validateOutlet(outlet); err != nil {
		return err
	}

	log.Printf("rebooting outlet %d on %s", outlet, c)
	resp, err := c.execute(cmdRebootOutlet, strconv.Itoa(outlet), "")
	if err != nil {
		return err
	}
	return interpretResult(resp)
}

// Switch sets one outlet to the given state. The settle delay covers the
// device's roughly one second switch cycle.
func (c *Connection) Switch(outlet int, state SwitchState) error {
	if err := validateOutlet(outlet); err != nil {
		return err
	}
	if err := validateState(state); err != nil {
		return err
	}

	log.Printf("switching outlet %d %s on %s", outlet, state, c)
	resp, err := c.execute(cmdSwitchOutlet, strconv.Itoa(outlet), state.wire())
	if err != nil {
		return err
	}
	return interpretResult(resp)
}

// SwitchAll sets both outlets to the given state. The device switches them
// concurrently, so the delay is the same as for a single outlet.
func (c *Connection) SwitchAll(state SwitchState) error {
	if err := validateState(state); err != nil {
		return err
	}

	log.Printf("switching all outlets %s on %s", state, c)
	resp, err := c.execute(cmdSwitchAll, state.wire(), "")
	if err != nil {
		return err
	}
	return interpretResult(resp)
}

// interpretResult maps the device's result line onto the error taxonomy.
func interpretResult(resp string) error {
	switch resp {
	case respOK:
		return nil
	case respFailed:
		return ErrCommandFailed
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResponse, resp)
	}
}
