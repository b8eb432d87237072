package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"go-midiclock/clock"
	"go-midiclock/config"
	"go-midiclock/debug"
	"go-midiclock/engine"
	"go-midiclock/hint"
	"go-midiclock/midi"
	"go-midiclock/theme"
	"go-midiclock/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-midiclock/config.json)")
	port := flag.String("port", "", "MIDI port: serial device or host port name")
	kind := flag.String("kind", "", "port kind: serial, host or loop")
	hintStdin := flag.Bool("hint-stdin", false, "read tempo hint BPM lines from stdin")
	noLog := flag.Bool("nolog", false, "disable the debug log")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *kind != "" {
		cfg.Serial.Kind = config.PortKind(*kind)
	}

	if !*noLog {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
		if cfg.LogLevel != "" {
			if err := debug.SetLevel(cfg.LogLevel); err != nil {
				fmt.Fprintf(os.Stderr, "log level: %v\n", err)
			}
		}
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		debug.Warn("main", "palette %s: %v, using default", cfg.UI.Palette, err)
	}
	th := theme.New(palette)

	transport, err := openTransport(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s port %q: %v\n", cfg.Serial.Kind, cfg.Serial.Port, err)
		os.Exit(1)
	}

	manager, err := engine.NewManager(cfg, transport,
		clock.NewSoftTimer(cfg.Clock.FrequencyHz),
		clock.NewSoftTimer(cfg.Clock.FrequencyHz))
	if err != nil {
		transport.Close()
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	manager.StartRuntime(ctx)

	if *hintStdin {
		go func() {
			if err := hint.ReadLines(ctx, os.Stdin, manager.Hint()); err != nil {
				debug.Warn("main", "hint input: %v", err)
			}
		}()
	}

	// Watch for ports appearing and disappearing (hot-plug)
	watcher := midi.NewPortWatcher()
	go watcher.Run(ctx)

	debug.Fields("main", "started", map[string]any{
		"config": path,
		"kind":   cfg.Serial.Kind,
		"port":   cfg.Serial.Port,
		"sbpm":   manager.TargetSBPM(),
	})

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if *hintStdin {
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(tui.NewModel(manager, watcher, th), opts...)
	_, runErr := p.Run()

	cancel()
	if err := manager.Close(); err != nil {
		debug.Warn("main", "close: %v", err)
	}
	manager.Wait()

	cfg.UI.LastSBPM = manager.TargetSBPM()
	if err := cfg.SaveTo(path); err != nil {
		debug.Warn("main", "save config: %v", err)
	}

	if runErr != nil {
		fmt.Printf("Error: %v\n", runErr)
		os.Exit(1)
	}
}

// loadConfig reads path, or the default config file when path is empty.
// A missing file yields the defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func openTransport(cfg *config.Config) (midi.Transport, error) {
	switch cfg.Serial.Kind {
	case config.PortLoop:
		return midi.NewLoopTransport(cfg.Queue.RxDepth), nil
	case config.PortHost:
		return midi.OpenPort(cfg.Serial.Port, cfg.Queue.RxDepth)
	case config.PortSerial, "":
		if cfg.Serial.Port == "" {
			return nil, errors.New("no serial port given (use -port, see miditest ports)")
		}
		return midi.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, cfg.Queue.RxDepth)
	}
	return nil, errors.Errorf("unknown port kind %q", cfg.Serial.Kind)
}
