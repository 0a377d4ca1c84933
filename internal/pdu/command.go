package pdu

import (
	"fmt"
	"time"
)

// CommandCode identifies a PDU command on the wire. The empty code is the
// null probe, which forces the device to a ready state after power-up.
type CommandCode string

const (
	cmdNull         CommandCode = ""
	cmdSwitchOutlet CommandCode = "$A3"
	cmdRebootOutlet CommandCode = "$A4"
	cmdGetStatus    CommandCode = "$A5"
	cmdSwitchAll    CommandCode = "$A7"
)

// Response codes returned on the command result line.
const (
	respOK     = "$A0"
	respFailed = "$AF"
)

const (
	// NumOutlets is the number of switchable outlets on the device.
	NumOutlets = 2

	// The device answers before the relay finishes moving and never
	// signals physical completion, so every state-changing command
	// carries a fixed settle delay covering the observed cycle time.
	switchSettleDelay = 1 * time.Second
	rebootSettleDelay = 2 * time.Second
)

type commandSpec struct {
	arity  int
	settle time.Duration
}

var commandTable = map[CommandCode]commandSpec{
	cmdNull:         {arity: 0},
	cmdGetStatus:    {arity: 0},
	cmdRebootOutlet: {arity: 1, settle: rebootSettleDelay},
	cmdSwitchAll:    {arity: 1, settle: switchSettleDelay},
	cmdSwitchOutlet: {arity: 2, settle: switchSettleDelay},
}

// SwitchState is the desired or reported power state of an outlet.
type SwitchState int

const (
	Off SwitchState = iota
	On
)

func (s SwitchState) String() string {
	switch s {
	case Off:
		return "off"
	case On:
		return "on"
	default:
		return fmt.Sprintf("switchstate(%d)", int(s))
	}
}

// wire returns the single-digit wire encoding of the state.
func (s SwitchState) wire() string {
	if s == On {
		return "1"
	}
	return "0"
}

func validateOutlet(outlet int) error {
	if outlet < 1 || outlet > NumOutlets {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidOutlet, outlet, NumOutlets)
	}
	return nil
}

func validateState(state SwitchState) error {
	if state != Off && state != On {
		return fmt.Errorf("%w: %d", ErrInvalidState, int(state))
	}
	return nil
}

// buildCommand assembles the outgoing command string and enforces the
// command's argument arity. The device cannot reliably report malformed
// commands, so arity violations are rejected here, before any I/O.
func buildCommand(code CommandCode, arg1, arg2 string) (string, error) {
	spec, ok := commandTable[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, string(code))
	}

	switch spec.arity {
	case 0:
		if arg1 != "" || arg2 != "" {
			return "", fmt.Errorf("%w: %q takes no arguments", ErrBadArguments, string(code))
		}
		return string(code), nil
	case 1:
		if arg1 == "" || arg2 != "" {
			return "", fmt.Errorf("%w: %q takes exactly one argument", ErrBadArguments, string(code))
		}
		return string(code) + " " + arg1, nil
	case 2:
		if arg1 == "" || arg2 == "" {
			return "", fmt.Errorf("%w: %q takes exactly two arguments", ErrBadArguments, string(code))
		}
		return string(code) + " " + arg1 + " " + arg2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, string(code))
	}
}
