package pdu

import "errors"

// Connection lifecycle errors
var (
	ErrNotConnected     = errors.New("not connected to PDU")
	ErrAlreadyConnected = errors.New("a PDU connection is already open")
	ErrFailedConnection = errors.New("failed to connect to PDU")
	ErrFailedDisconnect = errors.New("failed to disconnect from PDU")
)

// Command exchange errors
var (
	ErrFailedWrite     = errors.New("failed to send command")
	ErrFailedRead      = errors.New("failed to read command echo")
	ErrNoResponse      = errors.New("no response from PDU")
	ErrInvalidCommand  = errors.New("invalid command code")
	ErrCommandFailed   = errors.New("PDU reported command failure")
	ErrUnknownResponse = errors.New("unrecognized response from PDU")
)

// Contract violations: these indicate a caller bug, not a device or channel
// fault, and are raised before any serial I/O occurs.
var (
	ErrInvalidOutlet = errors.New("invalid outlet number")
	ErrInvalidState  = errors.New("invalid switch state")
	ErrBadArguments  = errors.New("wrong arguments for command")
)
