package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dwadden/commboard/internal/bootstrap"
	"github.com/dwadden/commboard/internal/camera"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "commboard-tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logOutput, closeLog, err := openLog(os.Getenv("COMMBOARD_LOG_FILE"))
	if err != nil {
		return err
	}
	defer closeLog()

	sink := tui.NewSink()
	defer sink.Close()

	services, err := bootstrap.Build(bootstrap.Options{Events: sink, Visibility: sink, LogOutput: logOutput})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	services.Start(ctx)
	defer func() {
		if err := services.Close(); err != nil {
			services.Logger.Warn("tui: shutdown incomplete", "error", err)
		}
	}()

	load := func() ([]menu.View, error) {
		var views []menu.View
		err := services.Loop.Call(func() { views = services.Tree.Snapshot() })
		return views, err
	}
	views, err := load()
	if err != nil {
		return err
	}

	deps := tui.Deps{
		Runner:   services.Scanner,
		Switch:   services.Switch,
		Settings: services.Scanner.Settings(),
		Menus:    views,
		Load:     load,
	}
	if services.Camera != nil {
		deps.Capture = func(template string) error {
			return services.Camera.Capture(camera.Template(template))
		}
	}

	program := tea.NewProgram(tui.New(deps), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(program.Send)
	services.Scanner.Start()
	if _, err := program.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

// openLog keeps log output off the terminal the UI draws on.
func openLog(path string) (io.Writer, func(), error) {
	if strings.TrimSpace(path) == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %q: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
