package switchcollection

type (
	Switch interface {
		TurnOn() error
		TurnOff() error
		GetState() (bool, error)
		String() string
	}

	// Rebooter is implemented by switches that can power-cycle in a
	// single device operation instead of an off/on pair.
	Rebooter interface {
		Reboot() error
	}

	SwitchCollection interface {
		Switch
		CountSwitches() uint
		ListSwitches() []Switch
		GetSwitch(id uint) (Switch, error)
		GetDetailedState() ([]bool, error)
		Init() error
		Close() error
	}
)
