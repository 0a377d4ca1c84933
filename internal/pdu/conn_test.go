package pdu

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/larsks/pductl/internal/serialport"
)

// fakeDevice simulates the two-outlet PDU at the line level: each write
// queues up the read results the real device would produce.
type fakeDevice struct {
	outlets    [NumOutlets]bool
	fresh      bool   // power-up state: ignore the first command received
	failSwitch bool   // answer $AF to every state-changing command
	respond    string // override the result token for state-changing commands
	noPrompt   bool   // answer the null probe without the prompt marker
	closeErr   error

	reads      []readResult
	writes     []string
	open       bool
	closeCount int
}

func (d *fakeDevice) SetTimeoutMode(mode serialport.TimeoutMode, timeout time.Duration) error {
	return nil
}

func (d *fakeDevice) ReadLine() (string, error) {
	if len(d.reads) == 0 {
		return "", serialport.ErrFailedRead
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	return r.line, r.err
}

func (d *fakeDevice) WriteString(cmd string) error {
	d.writes = append(d.writes, cmd)

	if d.fresh {
		// the device ignores the first command after power-up; a bare
		// carriage return still elicits the prompt
		d.fresh = false
		if cmd == "" {
			d.queueNullResponse()
		}
		return nil
	}

	if cmd == "" {
		d.queueNullResponse()
		return nil
	}

	fields := strings.Fields(cmd)
	switch CommandCode(fields[0]) {
	case cmdGetStatus:
		status := make([]byte, NumOutlets)
		for i, on := range d.outlets {
			status[i] = '0'
			if on {
				status[i] = '1'
			}
		}
		d.reads = append(d.reads, readResult{line: cmd}, readResult{line: string(status)})
	case cmdSwitchOutlet:
		d.queueResult(cmd, func() {
			d.outlets[fields[1][0]-'1'] = fields[2] == "1"
		})
	case cmdRebootOutlet:
		// a reboot cycle ends with the outlet powered
		d.queueResult(cmd, func() {
			d.outlets[fields[1][0]-'1'] = true
		})
	case cmdSwitchAll:
		d.queueResult(cmd, func() {
			for i := range d.outlets {
				d.outlets[i] = fields[1] == "1"
			}
		})
	}
	return nil
}

func (d *fakeDevice) queueNullResponse() {
	prompt := "NPS>"
	if d.noPrompt {
		prompt = "NPS"
	}
	d.reads = append(d.reads,
		readResult{err: serialport.ErrFailedRead}, // no echo for the null probe
		readResult{line: "Synaccess NP-0201"},
		readResult{line: prompt},
	)
}

func (d *fakeDevice) queueResult(cmd string, apply func()) {
	result := respOK
	switch {
	case d.respond != "":
		result = d.respond
	case d.failSwitch:
		result = respFailed
	default:
		apply()
	}
	d.reads = append(d.reads, readResult{line: cmd}, readResult{line: result})
}

func (d *fakeDevice) Close() error {
	d.closeCount++
	d.open = false
	return d.closeErr
}

func withFakeDevice(t *testing.T, d *fakeDevice) {
	t.Helper()
	orig := openChannel
	openChannel = func(device string, timeout time.Duration) (channel, error) {
		d.open = true
		return d, nil
	}
	t.Cleanup(func() {
		openChannel = orig
		liveMu.Lock()
		live = nil
		liveMu.Unlock()
	})
}

func connectFake(t *testing.T, d *fakeDevice) *Connection {
	t.Helper()
	c, err := Connect("/dev/ttyUSB0", time.Second)
	if err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}
	c.sleep = func(time.Duration) {}
	return c
}

func TestConnectEnforcesSingleConnection(t *testing.T) {
	d := &fakeDevice{}
	withFakeDevice(t, d)

	c := connectFake(t, d)

	if _, err := Connect("/dev/ttyUSB1", time.Second); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect() unexpected error: %v", err)
	}
	if d.closeCount != 1 {
		t.Errorf("Disconnect() closeCount = %d, want 1", d.closeCount)
	}

	if _, err := Connect("/dev/ttyUSB0", time.Second); err != nil {
		t.Errorf("Connect() after disconnect unexpected error: %v", err)
	}
}

func TestConnectOpenFailure(t *testing.T) {
	orig := openChannel
	openChannel = func(device string, timeout time.Duration) (channel, error) {
		return nil, serialport.ErrPortOpen
	}
	t.Cleanup(func() { openChannel = orig })

	if _, err := Connect("/dev/ttyUSB0", time.Second); !errors.Is(err, ErrFailedConnection) {
		t.Errorf("Connect() error = %v, want ErrFailedConnection", err)
	}
}

func TestDisconnectWhenDisconnected(t *testing.T) {
	d := &fakeDevice{}
	withFakeDevice(t, d)

	c := connectFake(t, d)
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect() unexpected error: %v", err)
	}
	if err := c.Disconnect(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("second Disconnect() error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectCloseFailureReleasesConnection(t *testing.T) {
	d := &fakeDevice{closeErr: errors.New("EBADF")}
	withFakeDevice(t, d)

	c := connectFake(t, d)
	if err := c.Disconnect(); !errors.Is(err, ErrFailedDisconnect) {
		t.Fatalf("Disconnect() error = %v, want ErrFailedDisconnect", err)
	}

	// the slot is released even when close fails
	d.closeErr = nil
	if _, err := Connect("/dev/ttyUSB0", time.Second); err != nil {
		t.Errorf("Connect() after failed disconnect unexpected error: %v", err)
	}
}

func TestSwitchThenStatus(t *testing.T) {
	for outlet := 1; outlet <= NumOutlets; outlet++ {
		for _, state := range []SwitchState{Off, On} {
			d := &fakeDevice{outlets: [NumOutlets]bool{state == Off, state == Off}}
			withFakeDevice(t, d)
			c := connectFake(t, d)

			if err := c.Switch(outlet, state); err != nil {
				t.Fatalf("Switch(%d, %s) unexpected error: %v", outlet, state, err)
			}

			s1, s2, err := c.GetStatus()
			if err != nil {
				t.Fatalf("GetStatus() unexpected error: %v", err)
			}
			got := []SwitchState{s1, s2}[outlet-1]
			if got != state {
				t.Errorf("outlet %d state = %s after Switch(%s)", outlet, got, state)
			}

			if err := c.Disconnect(); err != nil {
				t.Fatalf("Disconnect() unexpected error: %v", err)
			}
		}
	}
}

func TestGetStatusIdempotent(t *testing.T) {
	d := &fakeDevice{outlets: [NumOutlets]bool{true, false}}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	a1, a2, err := c.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() unexpected error: %v", err)
	}
	b1, b2, err := c.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() unexpected error: %v", err)
	}
	if a1 != b1 || a2 != b2 {
		t.Errorf("GetStatus() not idempotent: (%s,%s) then (%s,%s)", a1, a2, b1, b2)
	}
	if a1 != On || a2 != Off {
		t.Errorf("GetStatus() = (%s,%s), want (on,off)", a1, a2)
	}
}

func TestSwitchAll(t *testing.T) {
	d := &fakeDevice{outlets: [NumOutlets]bool{true, false}}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.SwitchAll(On); err != nil {
		t.Fatalf("SwitchAll(On) unexpected error: %v", err)
	}
	if s1, s2, _ := c.GetStatus(); s1 != On || s2 != On {
		t.Errorf("after SwitchAll(On): (%s,%s)", s1, s2)
	}

	if err := c.SwitchAll(Off); err != nil {
		t.Fatalf("SwitchAll(Off) unexpected error: %v", err)
	}
	if s1, s2, _ := c.GetStatus(); s1 != Off || s2 != Off {
		t.Errorf("after SwitchAll(Off): (%s,%s)", s1, s2)
	}
}

func TestRejectedWithoutIO(t *testing.T) {
	tests := []struct {
		name    string
		op      func(c *Connection) error
		wantErr error
	}{
		{"switch bad outlet", func(c *Connection) error { return c.Switch(3, On) }, ErrInvalidOutlet},
		{"switch outlet zero", func(c *Connection) error { return c.Switch(0, Off) }, ErrInvalidOutlet},
		{"switch bad state", func(c *Connection) error { return c.Switch(1, SwitchState(5)) }, ErrInvalidState},
		{"reboot bad outlet", func(c *Connection) error { return c.Reboot(9) }, ErrInvalidOutlet},
		{"switch all bad state", func(c *Connection) error { return c.SwitchAll(SwitchState(-1)) }, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDevice{}
			withFakeDevice(t, d)
			c := connectFake(t, d)

			if err := tt.op(c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(d.writes) != 0 {
				t.Errorf("command transmitted despite contract violation: %v", d.writes)
			}
		})
	}
}

func TestSwitchCommandFailed(t *testing.T) {
	d := &fakeDevice{failSwitch: true}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.Switch(1, On); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("Switch() error = %v, want ErrCommandFailed", err)
	}
}

func TestSwitchUnknownResponse(t *testing.T) {
	d := &fakeDevice{respond: "$FF"}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.Switch(1, On); !errors.Is(err, ErrUnknownResponse) {
		t.Errorf("Switch() error = %v, want ErrUnknownResponse", err)
	}
}

func TestNullProbe(t *testing.T) {
	d := &fakeDevice{}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.NullProbe(); err != nil {
		t.Errorf("NullProbe() unexpected error: %v", err)
	}
}

func TestNullProbeWithoutPrompt(t *testing.T) {
	d := &fakeDevice{noPrompt: true}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.NullProbe(); !errors.Is(err, ErrUnknownResponse) {
		t.Errorf("NullProbe() error = %v, want ErrUnknownResponse", err)
	}
}

func TestInitializeFreshDevice(t *testing.T) {
	d := &fakeDevice{fresh: true, outlets: [NumOutlets]bool{true, true}}
	withFakeDevice(t, d)

	c := &Connection{
		device:      "/dev/ttyUSB0",
		readTimeout: time.Second,
		sleep:       func(time.Duration) {},
	}
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}

	if c.state != stateInitialized {
		t.Errorf("Initialize() state = %d, want Initialized", c.state)
	}
	if d.outlets[0] || d.outlets[1] {
		t.Errorf("Initialize() left outlets %v, want both off", d.outlets)
	}

	want := []string{"", "$A4 1", "$A4 2", "$A7 0"}
	if len(d.writes) != len(want) {
		t.Fatalf("Initialize() writes = %v, want %v", d.writes, want)
	}
	for i, w := range want {
		if d.writes[i] != w {
			t.Errorf("Initialize() write[%d] = %q, want %q", i, d.writes[i], w)
		}
	}
}

func TestInitializeReconnectsWhenConnected(t *testing.T) {
	d := &fakeDevice{}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}
	if d.closeCount != 1 {
		t.Errorf("Initialize() closeCount = %d, want 1 (fresh-state reconnect)", d.closeCount)
	}
	if !d.open {
		t.Error("Initialize() left the channel closed")
	}
}

func TestInitializeFailureDisconnects(t *testing.T) {
	d := &fakeDevice{failSwitch: true}
	withFakeDevice(t, d)

	c := &Connection{
		device:      "/dev/ttyUSB0",
		readTimeout: time.Second,
		sleep:       func(time.Duration) {},
	}
	err := c.Initialize()
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("Initialize() error = %v, want ErrCommandFailed", err)
	}
	if c.state != stateDisconnected {
		t.Error("Initialize() did not disconnect after failure")
	}
	if d.open {
		t.Error("Initialize() leaked an open channel")
	}

	// the slot must be free again
	if _, cerr := Connect("/dev/ttyUSB0", time.Second); cerr != nil {
		t.Errorf("Connect() after failed Initialize() unexpected error: %v", cerr)
	}
}

func TestTerminate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := &fakeDevice{outlets: [NumOutlets]bool{true, true}}
		withFakeDevice(t, d)
		c := connectFake(t, d)

		if err := c.Terminate(false); err != nil {
			t.Fatalf("Terminate() unexpected error: %v", err)
		}
		if d.outlets[0] || d.outlets[1] {
			t.Errorf("Terminate() left outlets %v, want both off", d.outlets)
		}
		if d.open {
			t.Error("Terminate() left the channel open")
		}
	})

	t.Run("switch failure without force keeps connection", func(t *testing.T) {
		d := &fakeDevice{failSwitch: true}
		withFakeDevice(t, d)
		c := connectFake(t, d)

		if err := c.Terminate(false); !errors.Is(err, ErrCommandFailed) {
			t.Fatalf("Terminate() error = %v, want ErrCommandFailed", err)
		}
		if !d.open {
			t.Error("Terminate(force=false) disconnected despite switch failure")
		}
		if d.closeCount != 0 {
			t.Errorf("Terminate(force=false) closeCount = %d, want 0", d.closeCount)
		}
	})

	t.Run("switch failure with force disconnects", func(t *testing.T) {
		d := &fakeDevice{failSwitch: true}
		withFakeDevice(t, d)
		c := connectFake(t, d)

		if err := c.Terminate(true); !errors.Is(err, ErrCommandFailed) {
			t.Fatalf("Terminate() error = %v, want the suppressed switch error", err)
		}
		if d.open {
			t.Error("Terminate(force=true) left the channel open")
		}
	})
}

func TestReboot(t *testing.T) {
	d := &fakeDevice{}
	withFakeDevice(t, d)
	c := connectFake(t, d)

	if err := c.Reboot(2); err != nil {
		t.Fatalf("Reboot() unexpected error: %v", err)
	}
	if !d.outlets[1] {
		t.Error("Reboot() should leave the outlet powered")
	}
	if d.writes[0] != "$A4 2" {
		t.Errorf("Reboot() wrote %q, want %q", d.writes[0], "$A4 2")
	}
}
