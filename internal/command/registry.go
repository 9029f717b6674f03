package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
)

// ErrUnknownCommand is returned by Registry.Get and Registry.Run for names
// that were never registered.
var ErrUnknownCommand = errors.New("unknown command")

// Registry holds the available commands by name.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd, replacing any command of the same name.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

func (r *Registry) Get(name string) (Command, error) {
	cmd, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run parses args[1:] with the flags of the command named args[0] and
// executes it. Flag errors are reported on stderr and returned.
func (r *Registry) Run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: none given", ErrUnknownCommand)
	}
	cmd, err := r.Get(args[0])
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: jsop %s\n\n%s\n", cmd.Usage(), cmd.Description())
		if hasFlags(fs) {
			_, _ = fmt.Fprintln(stderr, "\nOptions:")
			fs.PrintDefaults()
		}
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	return cmd.Execute(fs.Args(), stdout, stderr)
}

func hasFlags(fs *flag.FlagSet) bool {
	n := 0
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n > 0
}
