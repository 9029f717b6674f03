package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/jsinterop/internal/command"
	"github.com/joeycumines/jsinterop/internal/config"
)

var version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}

	registry := command.NewRegistry()
	help := command.NewHelpCommand(registry)
	registry.Register(help)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, path))
	registry.Register(command.NewPageCommand(cfg))
	registry.Register(command.NewDownloadCommand(cfg))
	registry.Register(command.NewLogCommand(cfg))

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return help.Execute(nil, stdout, stderr)
	}

	err = registry.Run(args, stdout, stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return nil
	case errors.Is(err, command.ErrUnknownCommand):
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		_, _ = fmt.Fprintln(stderr, "Use 'jsop help' to see available commands.")
	}
	return err
}
