package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configurable represents a type that can be configured via flags and config files.
type Configurable interface {
	// AddFlags should add command-line flags to the provided FlagSet
	AddFlags(fs *pflag.FlagSet)
}

// ConfigLoader provides common configuration loading functionality.
type ConfigLoader struct {
	configFile string
	defaults   map[string]any
	strictMode bool
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		defaults: make(map[string]any),
	}
}

// SetConfigFile sets the configuration file path.
func (cl *ConfigLoader) SetConfigFile(configFile string) {
	cl.configFile = configFile
}

// SetDefault sets a default value for a configuration key.
func (cl *ConfigLoader) SetDefault(key string, value any) {
	cl.defaults[key] = value
}

// SetDefaults sets multiple default values at once.
func (cl *ConfigLoader) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		cl.defaults[key] = value
	}
}

// SetStrictMode enables or disables strict mode for configuration validation.
// In strict mode, unknown configuration fields will cause an error.
func (cl *ConfigLoader) SetStrictMode(strict bool) {
	cl.strictMode = strict
}

// LoadConfig loads configuration with proper precedence: defaults < config file < explicit flags.
// The config parameter should be a pointer to the configuration struct to populate.
func (cl *ConfigLoader) LoadConfig(config any) error {
	v := viper.New()

	for key, value := range cl.defaults {
		v.SetDefault(key, value)
	}

	if cl.configFile != "" {
		v.SetConfigFile(cl.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w %s: %v", ErrConfigFileRead, cl.configFile, err)
		}
	}

	// Only override with flags that were explicitly set by the user.
	// This preserves the precedence: defaults < config file < explicit flags.
	pflag.CommandLine.Visit(func(flag *pflag.Flag) {
		// Flag names use hyphens where viper keys use underscores,
		// e.g. --pdu.read-timeout -> pdu.read_timeout
		viperKey := strings.ReplaceAll(flag.Name, "-", "_")

		// Convert to the underlying value so non-string flags keep
		// their type through unmarshaling.
		switch flag.Value.Type() {
		case "uint", "uint8", "uint16", "uint32", "uint64":
			if val, err := strconv.ParseUint(flag.Value.String(), 10, 64); err == nil {
				v.Set(viperKey, val)
			} else {
				v.Set(viperKey, flag.Value.String())
			}
		case "int", "int8", "int16", "int32", "int64":
			if val, err := strconv.ParseInt(flag.Value.String(), 10, 64); err == nil {
				v.Set(viperKey, val)
			} else {
				v.Set(viperKey, flag.Value.String())
			}
		case "bool":
			if val, err := strconv.ParseBool(flag.Value.String()); err == nil {
				v.Set(viperKey, val)
			} else {
				v.Set(viperKey, flag.Value.String())
			}
		default:
			v.Set(viperKey, flag.Value.String())
		}
	})

	if cl.strictMode {
		var unmarshalConfig mapstructure.DecoderConfig
		unmarshalConfig.Result = config
		unmarshalConfig.ErrorUnused = true
		unmarshalConfig.TagName = "mapstructure"
		unmarshalConfig.WeaklyTypedInput = true

		decoder, err := mapstructure.NewDecoder(&unmarshalConfig)
		if err != nil {
			return fmt.Errorf("%w: failed to create decoder: %v", ErrConfigUnmarshal, err)
		}

		if err := decoder.Decode(v.AllSettings()); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
		}
	} else {
		if err := v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		))); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
		}
	}

	// Unmarshaling clears the ConfigFile field unless the file itself
	// names one; put the path the caller selected back.
	if cl.configFile != "" {
		if err := cl.setConfigFileField(config, cl.configFile); err != nil {
			return err
		}
	}

	return nil
}

// setConfigFileField attempts to set a ConfigFile field on the config struct using reflection.
func (cl *ConfigLoader) setConfigFileField(config any, configFile string) error {
	v := reflect.ValueOf(config)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("%w: got %T", ErrConfigNotPointer, config)
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %s", ErrConfigNotStruct, v.Kind())
	}

	field := v.FieldByName("ConfigFile")
	if !field.IsValid() {
		// Field doesn't exist, which is fine
		return nil
	}

	if !field.CanSet() {
		return fmt.Errorf("%w: ConfigFile", ErrConfigFieldNotSet)
	}

	if field.Kind() != reflect.String {
		return fmt.Errorf("%w: ConfigFile is %s", ErrConfigFieldNotString, field.Kind())
	}

	field.SetString(configFile)
	return nil
}

// StandardConfigPattern provides a convenient way to implement the standard config pattern.
func StandardConfigPattern(config Configurable, configFile string, defaults map[string]any) error {
	loader := NewConfigLoader()
	loader.SetConfigFile(configFile)
	if defaults != nil {
		loader.SetDefaults(defaults)
	}

	return loader.LoadConfig(config)
}
