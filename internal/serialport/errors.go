package serialport

import "errors"

// Channel state errors
var (
	ErrNotConnected = errors.New("serial channel is not open")
	ErrPortOpen     = errors.New("failed to open serial port")
)

// Timeout configuration errors
var (
	ErrTimeoutConfig      = errors.New("failed to configure read timeout")
	ErrInvalidTimeoutMode = errors.New("invalid timeout mode")
)

// I/O errors
var (
	ErrFailedWrite = errors.New("failed to write to serial port")
	ErrFailedRead  = errors.New("failed to read from serial port")
)
