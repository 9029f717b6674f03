package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	// TypeBool accepts true/false, yes/no, 1/0 and on/off.
	TypeBool OptionType = "bool"
	TypeInt  OptionType = "int"
	// TypeDuration is a time.ParseDuration string such as "30s".
	TypeDuration OptionType = "duration"
	// TypeEnum accepts one of ConfigOption.Values.
	TypeEnum OptionType = "enum"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as written in the file.
	Key  string
	Type OptionType
	// Default is used when neither the environment nor the file set a
	// value. Empty means no default.
	Default     string
	Description string
	// Section is "" for global options.
	Section string
	// EnvVar, if set, overrides the file.
	EnvVar string
	// Values lists the accepted values of a TypeEnum option.
	Values []string
}

// ConfigSchema is the set of known options, used to validate files,
// resolve effective values and print help.
type ConfigSchema struct {
	options []*ConfigOption
	index   map[string]map[string]*ConfigOption
}

func NewSchema() *ConfigSchema {
	return &ConfigSchema{index: make(map[string]map[string]*ConfigOption)}
}

// Register adds opt. A later registration of the same section and key
// replaces the earlier one.
func (s *ConfigSchema) Register(opts ...ConfigOption) {
	for _, opt := range opts {
		ref := new(ConfigOption)
		*ref = opt
		sec := s.index[opt.Section]
		if sec == nil {
			sec = make(map[string]*ConfigOption)
			s.index[opt.Section] = sec
		}
		if prev, ok := sec[opt.Key]; ok {
			s.options = slices.DeleteFunc(s.options, func(o *ConfigOption) bool { return o == prev })
		}
		sec[opt.Key] = ref
		s.options = append(s.options, ref)
	}
}

// Lookup returns the option registered under section and key, or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.index[section][key]
}

// IsKnown reports whether key may appear in section. Global options may
// appear in any section, where they override the global value.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.Lookup("", key) != nil
}

// Options returns the options of one section in registration order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of sections with registered options.
func (s *ConfigSchema) Sections() []string {
	var out []string
	for sec := range s.index {
		if sec != "" {
			out = append(out, sec)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the effective value of a global option: its environment
// variable, then the file, then the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveIn(c, "", key)
}

// ResolveIn is Resolve for an option that may be set in section. The
// section value wins over the global one.
func (s *ConfigSchema) ResolveIn(c *Config, section, key string) string {
	opt := s.Lookup(section, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetSectionOption(section, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig returns the problems found in c, sorted: unknown options
// and values that do not parse as their declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := opt.check(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Sections {
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			if err := opt.check(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

func (o *ConfigOption) check(value string) error {
	switch o.Type {
	case TypeString, "":
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	case TypeEnum:
		if !slices.Contains(o.Values, strings.ToLower(value)) {
			return fmt.Errorf("expected one of %s, got %q", strings.Join(o.Values, ", "), value)
		}
	default:
		return fmt.Errorf("unknown option type %q", o.Type)
	}
	return nil
}

// GetInt returns a global option as an int, or 0 if unset or malformed.
func (c *Config) GetInt(key string) int {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return i
}

// GetBool returns a global option as a bool, or false if unset or
// malformed.
func (c *Config) GetBool(key string) bool {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return false
	}
	b, err := parseBool(v)
	return err == nil && b
}

// GetDuration returns a global option as a duration, or 0 if unset or
// malformed.
func (c *Config) GetDuration(key string) time.Duration {
	v, ok := c.GetGlobalOption(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// FormatHelp lists every option, global options first, then each section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if opts := s.Options(""); len(opts) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-24s %s", o.Key, o.Description)
	var parts []string
	switch o.Type {
	case TypeString, "":
	case TypeEnum:
		parts = append(parts, "one of: "+strings.Join(o.Values, "|"))
	default:
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteByte('\n')
}

// DefaultSchema declares every option jsop understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.Register(
		ConfigOption{Key: "log.file", Description: "Log file path (JSON records, rotated)", EnvVar: "JSOP_LOG_FILE"},
		ConfigOption{Key: "log.level", Type: TypeEnum, Values: []string{"debug", "info", "warn", "error"}, Default: "info", Description: "Minimum log level", EnvVar: "JSOP_LOG_LEVEL"},
		ConfigOption{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Log file size that triggers rotation"},
		ConfigOption{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},
		ConfigOption{Key: "log.buffer-size", Type: TypeInt, Default: "1000", Description: "Remote console records held in memory"},

		ConfigOption{Key: "timeout", Type: TypeDuration, Default: "30s", Description: "Deadline for one command"},
		ConfigOption{Key: "color", Type: TypeEnum, Values: []string{"auto", "always", "never"}, Default: "auto", Description: "Colored console output", EnvVar: "JSOP_COLOR"},

		ConfigOption{Key: "runtime.sync-timeout", Type: TypeDuration, Default: "5s", Description: "Bound on synchronous calls into the script runtime"},
		ConfigOption{Key: "module.locator", Default: "./_content/jsop/jsop.js", Description: "Locator of the interop script module"},
		ConfigOption{Key: "loader.root", Default: ".", Description: "Directory that relative script locators resolve against"},
		ConfigOption{Key: "loader.http-timeout", Type: TypeDuration, Default: "30s", Description: "Timeout for fetching remote scripts and downloads"},
		ConfigOption{Key: "loader.user-agent", Default: "jsop/1.0", Description: "User-Agent for remote fetches"},
		ConfigOption{Key: "download.dir", Default: ".", Description: "Directory downloads are saved to", EnvVar: "JSOP_DOWNLOAD_DIR"},

		ConfigOption{Key: "output", Section: "page", Description: "File the rendered page is written to (default stdout)"},
		ConfigOption{Key: "manifest", Section: "page", Description: "Default page manifest (TOML)"},
	)
	return s
}
