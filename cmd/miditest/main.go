package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"go-midiclock/clock"
	"go-midiclock/config"
	"go-midiclock/engine"
	"go-midiclock/midi"
	"go-midiclock/tempo"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "ports":
		err = listPorts()
	case "monitor":
		err = withPort(monitor)
	case "send":
		err = withPort(sendPattern)
	case "clock":
		err = withPort(runClock)
	case "loop":
		err = loop()
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI bench tool")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports               - List serial and host MIDI ports")
	fmt.Println("  monitor <port>      - Print received messages")
	fmt.Println("  send <port>         - Send the test pattern")
	fmt.Println("  clock <port> <sbpm> - Send MIDI clock for 10 seconds (12000 = 120.00 BPM)")
	fmt.Println("  loop                - Encode the test pattern through a loopback and parse it back")
	fmt.Println("")
	fmt.Println("A port starting with / or COM is opened as serial at 31250 baud,")
	fmt.Println("anything else as a host MIDI port.")
}

func listPorts() error {
	fmt.Println("=== Serial Ports ===")
	names, err := midi.SerialPorts()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}

	fmt.Println("\n=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	ins, outs, err := midi.ListPorts(3 * time.Second)
	if err != nil {
		return err
	}
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	return nil
}

func open(name string) (midi.Transport, error) {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(strings.ToUpper(name), "COM") {
		return midi.OpenSerial(name, config.DefaultConfig().Serial.Baud, midi.DefaultQueueDepth)
	}
	return midi.OpenPort(name, midi.DefaultQueueDepth)
}

// withPort opens os.Args[2] and runs fn until it returns or ctrl+c.
func withPort(fn func(ctx context.Context, t midi.Transport, args []string) error) error {
	if len(os.Args) < 3 {
		usage()
		return nil
	}
	t, err := open(os.Args[2])
	if err != nil {
		return err
	}
	defer t.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return fn(ctx, t, os.Args[3:])
}

func printMessage(m midi.Message) {
	if line, ok := engine.FormatLine(m); ok {
		fmt.Println(line)
		return
	}
	if m.Kind == midi.KindRealtime && m.Status == midi.TimingClock {
		return
	}
	fmt.Println(m.String())
}

func monitor(ctx context.Context, t midi.Transport, _ []string) error {
	fmt.Println("Listening (ctrl+c to stop)...")

	var pulses uint64
	r := midi.NewReceiver(t, midi.MessageFunc(func(m midi.Message) {
		if m.Kind == midi.KindRealtime && m.Status == midi.TimingClock {
			pulses++
		}
		printMessage(m)
	}))

	err := r.Run(ctx)
	fmt.Printf("\n%d bytes, %d clock pulses, %d dropped\n", r.Bytes(), pulses, r.Dropped())
	return err
}

func newBenchManager(t midi.Transport, timer clock.Timer) (*engine.Manager, error) {
	cfg := config.DefaultConfig()
	return engine.NewManager(cfg, t, timer, timer)
}

func sendPattern(ctx context.Context, t midi.Transport, _ []string) error {
	mgr, err := newBenchManager(t, clock.NewSoftTimer(config.DefaultConfig().Clock.FrequencyHz))
	if err != nil {
		return err
	}
	fmt.Println("Sending test pattern...")
	if err := mgr.SendTestPattern(ctx); err != nil {
		return err
	}
	fmt.Println("Done")
	return nil
}

func runClock(ctx context.Context, t midi.Transport, args []string) error {
	sbpm := uint64(12000)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return errors.Wrapf(err, "sbpm %q", args[0])
		}
		sbpm = v
	}

	mgr, err := newBenchManager(t, clock.NewSoftTimer(config.DefaultConfig().Clock.FrequencyHz))
	if err != nil {
		return err
	}
	mgr.SetTempo(uint16(sbpm))
	if err := mgr.StartClock(); err != nil {
		return err
	}
	defer mgr.StopClock()

	fmt.Printf("Clock at %s BPM for 10 seconds...\n", tempo.FormatSBPM(mgr.TargetSBPM()))
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
	}
	gen := mgr.Generator()
	fmt.Printf("%d ticks sent (%d timer callbacks)\n", gen.Emitted(), gen.Fired())
	return nil
}

// loop runs the test pattern through a loopback at full speed and prints the
// wire bytes next to what the parser made of them.
func loop() error {
	t := midi.NewLoopTransport(256)
	defer t.Close()

	enc := midi.NewEncoder(t)
	enc.Start()
	for v := uint8(0); v < 16; v++ {
		enc.ControlChange(15, midi.CtlModWheelMSB, v)
	}
	for key := uint8(60); key <= 65; key++ {
		enc.TimingClock()
		enc.NoteOn(6, key, 100)
	}
	for key := uint8(60); key <= 65; key++ {
		enc.NoteOff(6, key, 0)
	}
	enc.PitchWheel(0, 0x2000+1000)
	enc.SysExStart()
	enc.SysExBulk([]byte{0x7D, 0x01, 0x02})
	enc.SysExStop()
	enc.Stop()

	var wire []string
	var parsed []string
	p := midi.NewParser(midi.MessageFunc(func(m midi.Message) {
		if line, ok := engine.FormatLine(m); ok {
			parsed = append(parsed, line)
			return
		}
		parsed = append(parsed, m.String())
	}))

	ctx := context.Background()
	for t.Pending() > 0 {
		b, err := t.Receive(ctx)
		if err != nil {
			return err
		}
		wire = append(wire, fmt.Sprintf("%02X", b))
		p.Feed(b)
	}

	fmt.Printf("=== Wire (%d bytes, %d dropped) ===\n", len(wire), t.Dropped())
	for i := 0; i < len(wire); i += 16 {
		end := min(i+16, len(wire))
		fmt.Println("  " + strings.Join(wire[i:end], " "))
	}
	fmt.Printf("\n=== Parsed (%d messages) ===\n", len(parsed))
	for _, line := range parsed {
		fmt.Println("  " + line)
	}
	return nil
}
