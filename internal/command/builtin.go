package command

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/joeycumines/jsinterop/internal/config"
)

// HelpCommand lists the commands, or describes one.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand("help", "Display help information for commands", "help [command]"),
		registry:    registry,
	}
}

func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "jsop - drive a headless page through the script interop bridge")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: jsop <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Commands:")
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			cmd, _ := c.registry.Get(name)
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'jsop help <command>' for the flags of a command.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: jsop %s\n", cmd.Usage())

	// a scratch FlagSet renders the defaults without touching real state
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var buf bytes.Buffer
	fs.SetOutput(&buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

type VersionCommand struct {
	*BaseCommand
	version string
}

func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand("version", "Display version information", "version"),
		version:     version,
	}
}

func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "jsop version %s\n", c.version)
	return nil
}

// ConfigCommand inspects and edits the configuration file.
type ConfigCommand struct {
	*BaseCommand
	config *config.Config
	path   string
	all    bool
}

// NewConfigCommand creates the config command. Values set through it are
// written to path; an empty path disables persistence.
func NewConfigCommand(cfg *config.Config, path string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Show, validate or change configuration",
			"config [--all] [schema | validate | path | get <key> | set <key> <value> | <key> [value]]",
		),
		config: cfg,
		path:   path,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "Show the effective value of every option")
}

func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()
	if len(args) == 0 {
		if c.all {
			c.showAll(schema, stdout)
			return nil
		}
		_, _ = fmt.Fprintln(stdout, "Configuration management:")
		_, _ = fmt.Fprintln(stdout, "  config get <key>          - Show the effective value of an option")
		_, _ = fmt.Fprintln(stdout, "  config set <key> <value>  - Set a global option in the config file")
		_, _ = fmt.Fprintln(stdout, "  config --all              - Show every option")
		_, _ = fmt.Fprintln(stdout, "  config validate           - Check the config file")
		_, _ = fmt.Fprintln(stdout, "  config schema             - Describe every option")
		_, _ = fmt.Fprintln(stdout, "  config path               - Show the config file location")
		return nil
	}

	switch args[0] {
	case "schema":
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil
	case "validate":
		return c.validate(schema, stdout)
	case "path":
		_, _ = fmt.Fprintln(stdout, c.path)
		return nil
	case "get":
		args = args[1:]
		if len(args) != 1 {
			return errors.New("usage: config get <key>")
		}
	case "set":
		args = args[1:]
		if len(args) != 2 {
			return errors.New("usage: config set <key> <value>")
		}
	}

	switch len(args) {
	case 1:
		return c.get(schema, args[0], stdout)
	case 2:
		return c.set(schema, args[0], args[1], stdout, stderr)
	}
	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return errors.New("invalid arguments")
}

func (c *ConfigCommand) get(schema *config.ConfigSchema, key string, stdout io.Writer) error {
	if schema.Lookup("", key) == nil {
		if _, ok := c.config.GetGlobalOption(key); !ok {
			return fmt.Errorf("unknown option %q", key)
		}
	}
	_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, schema.Resolve(c.config, key))
	return nil
}

func (c *ConfigCommand) set(schema *config.ConfigSchema, key, value string, stdout, stderr io.Writer) error {
	probe := config.NewConfig()
	probe.SetGlobalOption(key, value)
	if issues := config.ValidateConfig(probe, schema); len(issues) > 0 {
		return errors.New(issues[0])
	}
	c.config.SetGlobalOption(key, value)
	if c.path != "" {
		if err := config.SetKeyInFile(c.path, key, value); err != nil {
			return fmt.Errorf("failed to persist config: %w", err)
		}
	} else {
		_, _ = fmt.Fprintln(stderr, "Warning: no config file, the value is not saved")
	}
	_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	return nil
}

func (c *ConfigCommand) validate(schema *config.ConfigSchema, stdout io.Writer) error {
	issues := config.ValidateConfig(c.config, schema)
	if _, err := schema.ResolveSettings(c.config); err != nil && len(issues) == 0 {
		issues = append(issues, err.Error())
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return fmt.Errorf("%d configuration issue(s)", len(issues))
}

func (c *ConfigCommand) showAll(schema *config.ConfigSchema, stdout io.Writer) {
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	for _, o := range schema.Options("") {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Key, schema.Resolve(c.config, o.Key))
	}
	for _, sec := range schema.Sections() {
		for _, o := range schema.Options(sec) {
			_, _ = fmt.Fprintf(w, "[%s] %s\t%s\n", sec, o.Key, schema.ResolveIn(c.config, sec, o.Key))
		}
	}
	var extra []string
	for key := range c.config.Global {
		if schema.Lookup("", key) == nil {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	for _, key := range extra {
		_, _ = fmt.Fprintf(w, "%s\t%s\t(unknown)\n", key, c.config.Global[key])
	}
	_ = w.Flush()
}
