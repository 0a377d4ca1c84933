package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"

	"github.com/larsks/pductl/internal/config"
	"github.com/larsks/pductl/internal/pdu"
	"github.com/larsks/pductl/internal/version"
)

var (
	versionFlag = pflag.Bool("version", false, "Show version and exit")
	helpFlag    = pflag.BoolP("help", "h", false, "Show help")
	forceFlag   = pflag.Bool("force", false, "Disconnect even if the shutdown switch fails")
	configFlag  = pflag.String("config", "", "Config file to use")
)

// Config holds the pductl configuration
type Config struct {
	ConfigFile  string `mapstructure:"config_file"`
	Device      string `mapstructure:"device"`
	ReadTimeout int    `mapstructure:"read_timeout"` // in seconds
}

func getDefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "pductl", "pductl.toml")
}

// AddFlags adds command-line flags for all configuration options
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Device, "device", c.Device, "Serial device the PDU is attached to")
	fs.IntVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "Serial read timeout in seconds")
}

// LoadConfig loads configuration with precedence: defaults < config file < explicit flags
func (c *Config) LoadConfig() error {
	configFile := *configFlag
	if configFile == "" {
		// the default config file is optional
		candidate := getDefaultConfigFile()
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(configFile)
	loader.SetDefaults(map[string]any{
		"device":       "/dev/ttyUSB0",
		"read_timeout": 5,
	})

	return loader.LoadConfig(c)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] COMMAND [ARGS...]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "A command line tool for controlling a two-outlet switched PDU.\n\n")

	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  status          Show the power state of both outlets\n")
	fmt.Fprintf(os.Stderr, "  on OUTLET       Switch an outlet on\n")
	fmt.Fprintf(os.Stderr, "  off OUTLET      Switch an outlet off\n")
	fmt.Fprintf(os.Stderr, "  reboot OUTLET   Power-cycle an outlet\n")
	fmt.Fprintf(os.Stderr, "  all on|off      Switch both outlets in one operation\n")
	fmt.Fprintf(os.Stderr, "  init            Bring the PDU to a known state (both outlets off)\n")
	fmt.Fprintf(os.Stderr, "  shutdown        Switch both outlets off and disconnect\n\n")

	fmt.Fprintf(os.Stderr, "Options:\n")
	pflag.PrintDefaults()

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s status                   # Show outlet states\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s on 1                     # Switch outlet 1 on\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s reboot 2                 # Power-cycle outlet 2\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s all off                  # Switch both outlets off\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --device /dev/ttyS1 init # Use an alternative serial device\n", os.Args[0])
}

func main() {
	cfg := &Config{}
	cfg.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if *versionFlag {
		version.ShowVersion()
		os.Exit(0)
	}

	if *helpFlag {
		usage()
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: No command specified\n\n")
		usage()
		os.Exit(1)
	}

	if err := cfg.LoadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := args[0]

	conn, err := pdu.Connect(cfg.Device, time.Duration(cfg.ReadTimeout)*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to PDU on %s: %v", cfg.Device, err)
	}

	switch command {
	case "status":
		err = handleStatusCommand(conn, args[1:])
	case "on":
		err = handleSwitchCommand(conn, pdu.On, args[1:])
	case "off":
		err = handleSwitchCommand(conn, pdu.Off, args[1:])
	case "reboot":
		err = handleRebootCommand(conn, args[1:])
	case "all":
		err = handleAllCommand(conn, args[1:])
	case "init":
		err = handleInitCommand(conn, args[1:])
	case "shutdown":
		err = handleShutdownCommand(conn, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		usage()
		os.Exit(1)
	}

	if command != "shutdown" {
		if derr := conn.Disconnect(); derr != nil && err == nil {
			err = derr
		}
	}

	if err != nil {
		log.Fatalf("%s command failed: %v", command, err)
	}
}

func handleStatusCommand(conn *pdu.Connection, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("status command does not accept arguments")
	}

	s1, s2, err := conn.GetStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Outlet 1: %s\n", s1)
	fmt.Printf("Outlet 2: %s\n", s2)
	return nil
}

func handleSwitchCommand(conn *pdu.Connection, state pdu.SwitchState, args []string) error {
	outlet, err := parseOutletArg(args)
	if err != nil {
		return err
	}

	if err := conn.Switch(outlet, state); err != nil {
		return err
	}

	fmt.Printf("Outlet %d: %s\n", outlet, state)
	return nil
}

func handleRebootCommand(conn *pdu.Connection, args []string) error {
	outlet, err := parseOutletArg(args)
	if err != nil {
		return err
	}

	if err := conn.Reboot(outlet); err != nil {
		return err
	}

	fmt.Printf("Outlet %d: rebooted\n", outlet)
	return nil
}

func handleAllCommand(conn *pdu.Connection, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("all command requires 'on' or 'off' argument")
	}

	state, err := parseState(args[0])
	if err != nil {
		return err
	}

	if err := conn.SwitchAll(state); err != nil {
		return err
	}

	fmt.Printf("All outlets: %s\n", state)
	return nil
}

func handleInitCommand(conn *pdu.Connection, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("init command does not accept arguments")
	}

	if err := conn.Initialize(); err != nil {
		return err
	}

	fmt.Println("PDU initialized; both outlets off")
	return nil
}

func handleShutdownCommand(conn *pdu.Connection, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("shutdown command does not accept arguments")
	}

	if err := conn.Terminate(*forceFlag); err != nil {
		return err
	}

	fmt.Println("PDU shut down; both outlets off")
	return nil
}

func parseOutletArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("command requires an outlet number")
	}

	outlet, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid outlet number '%s': %v", args[0], err)
	}
	return outlet, nil
}

func parseState(stateStr string) (pdu.SwitchState, error) {
	switch strings.ToLower(stateStr) {
	case "1", "on", "true":
		return pdu.On, nil
	case "0", "off", "false":
		return pdu.Off, nil
	default:
		return pdu.Off, fmt.Errorf("invalid state '%s' (must be 0/1, on/off, or true/false)", stateStr)
	}
}
