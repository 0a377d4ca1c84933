package switchdrivers

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/larsks/pductl/internal/pdu"
	"github.com/larsks/pductl/internal/switchcollection"
)

// PDUConfig represents PDU driver configuration
type PDUConfig struct {
	Device      string `mapstructure:"device"`
	ReadTimeout int    `mapstructure:"read_timeout"` // in seconds
}

// PDUFactory implements Factory for serial PDU drivers
type PDUFactory struct{}

// CreateDriver creates a new PDU switch collection
func (f *PDUFactory) CreateDriver(config map[string]interface{}) (switchcollection.SwitchCollection, error) {
	cfg, err := f.parseConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdu config: %w", err)
	}

	if cfg.Device == "" {
		return nil, fmt.Errorf("pdu driver requires a device")
	}

	timeout := pdu.DefaultReadTimeout
	if cfg.ReadTimeout > 0 {
		timeout = time.Duration(cfg.ReadTimeout) * time.Second
	}

	return NewPDUSwitchCollection(cfg.Device, timeout), nil
}

// ValidateConfig validates PDU configuration
func (f *PDUFactory) ValidateConfig(config map[string]interface{}) error {
	cfg, err := f.parseConfig(config)
	if err != nil {
		return err
	}

	if cfg.Device == "" {
		return fmt.Errorf("pdu driver requires a device")
	}
	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must be non-negative")
	}

	return nil
}

// parseConfig converts map to PDUConfig struct
func (f *PDUFactory) parseConfig(config map[string]interface{}) (*PDUConfig, error) {
	cfg := &PDUConfig{}
	if err := mapstructure.Decode(config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PDUSwitchCollection exposes the two outlets of a serial PDU as a
// switch collection. The connection is established by Init and torn
// down by Close.
type PDUSwitchCollection struct {
	device  string
	timeout time.Duration
	conn    *pdu.Connection
}

// PDUSwitch is a single outlet of a connected PDU. Outlet numbers on the
// wire are 1-based while collection ids are 0-based.
type PDUSwitch struct {
	coll   *PDUSwitchCollection
	outlet int
}

func NewPDUSwitchCollection(device string, timeout time.Duration) *PDUSwitchCollection {
	return &PDUSwitchCollection{
		device:  device,
		timeout: timeout,
	}
}

// Init connects to the PDU and runs the warm-up sequence, leaving both
// outlets in a known (off) state.
func (psc *PDUSwitchCollection) Init() error {
	conn, err := pdu.Connect(psc.device, psc.timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to pdu on %s: %w", psc.device, err)
	}

	if err := conn.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize pdu on %s: %w", psc.device, err)
	}

	psc.conn = conn
	return nil
}

// Close switches both outlets off and disconnects. Teardown is forced:
// the serial channel is released even if the device refuses the final
// switch command.
func (psc *PDUSwitchCollection) Close() error {
	if psc.conn == nil {
		return nil
	}
	err := psc.conn.Terminate(true)
	psc.conn = nil
	return err
}

// CountSwitches returns the number of outlets
func (psc *PDUSwitchCollection) CountSwitches() uint {
	return pdu.NumOutlets
}

// ListSwitches returns all outlets as switches
func (psc *PDUSwitchCollection) ListSwitches() []switchcollection.Switch {
	switches := make([]switchcollection.Switch, pdu.NumOutlets)
	for i := range switches {
		switches[i] = &PDUSwitch{coll: psc, outlet: i + 1}
	}
	return switches
}

// GetSwitch returns a specific outlet by ID
func (psc *PDUSwitchCollection) GetSwitch(id uint) (switchcollection.Switch, error) {
	if id >= pdu.NumOutlets {
		return nil, fmt.Errorf("invalid switch id %d", id)
	}
	return &PDUSwitch{coll: psc, outlet: int(id) + 1}, nil
}

// TurnOn switches both outlets on in one device operation
func (psc *PDUSwitchCollection) TurnOn() error {
	if psc.conn == nil {
		return pdu.ErrNotConnected
	}
	return psc.conn.SwitchAll(pdu.On)
}

// TurnOff switches both outlets off in one device operation
func (psc *PDUSwitchCollection) TurnOff() error {
	if psc.conn == nil {
		return pdu.ErrNotConnected
	}
	return psc.conn.SwitchAll(pdu.Off)
}

// GetState returns true when both outlets are on
func (psc *PDUSwitchCollection) GetState() (bool, error) {
	states, err := psc.GetDetailedState()
	if err != nil {
		return false, err
	}
	for _, s := range states {
		if !s {
			return false, nil
		}
	}
	return true, nil
}

// GetDetailedState returns the state of both outlets
func (psc *PDUSwitchCollection) GetDetailedState() ([]bool, error) {
	if psc.conn == nil {
		return nil, pdu.ErrNotConnected
	}
	s1, s2, err := psc.conn.GetStatus()
	if err != nil {
		return nil, err
	}
	return []bool{s1 == pdu.On, s2 == pdu.On}, nil
}

// String returns a string representation
func (psc *PDUSwitchCollection) String() string {
	return fmt.Sprintf("pdu switch collection on %s", psc.device)
}

// TurnOn switches the outlet on
func (ps *PDUSwitch) TurnOn() error {
	if ps.coll.conn == nil {
		return pdu.ErrNotConnected
	}
	return ps.coll.conn.Switch(ps.outlet, pdu.On)
}

// TurnOff switches the outlet off
func (ps *PDUSwitch) TurnOff() error {
	if ps.coll.conn == nil {
		return pdu.ErrNotConnected
	}
	return ps.coll.conn.Switch(ps.outlet, pdu.Off)
}

// Reboot power-cycles the outlet in one device operation
func (ps *PDUSwitch) Reboot() error {
	if ps.coll.conn == nil {
		return pdu.ErrNotConnected
	}
	return ps.coll.conn.Reboot(ps.outlet)
}

// GetState returns the current state of the outlet
func (ps *PDUSwitch) GetState() (bool, error) {
	states, err := ps.coll.GetDetailedState()
	if err != nil {
		return false, err
	}
	return states[ps.outlet-1], nil
}

// String returns a string representation of the outlet
func (ps *PDUSwitch) String() string {
	return fmt.Sprintf("pdu:%s:%d", ps.coll.device, ps.outlet)
}

func init() {
	Register("pdu", &PDUFactory{})
}
