package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"matriarchctl/config"
	"matriarchctl/debug"
	"matriarchctl/engine"
	"matriarchctl/param"
	"matriarchctl/preset"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "params":
		listParams()
	case "show":
		withEngine(func(ctx context.Context, e *engine.Engine) { show(e) })
	case "get":
		requireArgs(3)
		withEngine(func(ctx context.Context, e *engine.Engine) { get(e, os.Args[2]) })
	case "set":
		requireArgs(4)
		withEngine(func(ctx context.Context, e *engine.Engine) { set(ctx, e, os.Args[2], os.Args[3]) })
	case "query":
		withEngine(queryAll)
	case "push":
		withEngine(push)
	case "export":
		requireArgs(3)
		withEngine(func(ctx context.Context, e *engine.Engine) { exportPreset(ctx, e, os.Args[2]) })
	case "import":
		requireArgs(3)
		withEngine(func(ctx context.Context, e *engine.Engine) { importPreset(ctx, e, os.Args[2]) })
	case "watch":
		withEngine(watch)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("matriarchctl - Moog Matriarch global settings over MIDI")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List MIDI ports")
	fmt.Println("  params          - List all known parameters")
	fmt.Println("  show            - Show the local parameter table")
	fmt.Println("  get <name|id>   - Show one parameter")
	fmt.Println("  set <name|id> <value> - Set a parameter on the device")
	fmt.Println("  query           - Pull the device's full state")
	fmt.Println("  push            - Send the whole local table to the device")
	fmt.Println("  export <file>   - Write the local table as a preset")
	fmt.Println("  import <file>   - Load a preset and send it")
	fmt.Println("  watch           - Print parameter changes as they arrive")
}

func requireArgs(n int) {
	if len(os.Args) < n {
		usage()
		os.Exit(2)
	}
}

func listPorts() {
	// Port scan can hang on a wedged MIDI service; give it a deadline.
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		fmt.Println("=== MIDI Input Ports ===")
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("TIMEOUT! MIDI service is hung.")
	}
}

func listParams() {
	reg := param.Matriarch()
	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		enc := "sysex"
		if s.Encoding.Kind == param.EncodeCC {
			enc = fmt.Sprintf("cc %d", s.Encoding.Controller)
		}
		fmt.Printf("  %3d  %-40s %-9s %s\n", id, s.Name, enc, s.Group)
	}
}

// findPort picks the first port whose name contains needle, or the first
// matriarch port when no preference is configured.
func findPort[T interface{ String() string }](ports []T, needle string) (T, bool) {
	var zero T
	if needle == "" {
		needle = "matriarch"
	}
	needle = strings.ToLower(needle)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), needle) {
			return p, true
		}
	}
	return zero, false
}

// withEngine opens the configured ports, starts an engine, runs fn, and tears
// everything down.
func withEngine(fn func(ctx context.Context, e *engine.Engine)) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug {
		if err := debug.Enable(); err == nil {
			defer debug.Disable()
		}
	}

	in, ok := findPort(gomidi.GetInPorts(), cfg.MIDI.InputPort)
	if !ok {
		fmt.Println("No Matriarch input port found (set midi.inputPort in config)")
		os.Exit(1)
	}
	out, ok := findPort(gomidi.GetOutPorts(), cfg.MIDI.OutputPort)
	if !ok {
		fmt.Println("No Matriarch output port found (set midi.outputPort in config)")
		os.Exit(1)
	}
	defer gomidi.CloseDriver()

	transport, err := engine.NewMIDITransport(in, out)
	if err != nil {
		fmt.Printf("transport: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	e := engine.New(transport, param.Matriarch(), cfg.Engine())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	fn(ctx, e)
}

func lookup(e *engine.Engine, key string) (*param.Spec, bool) {
	reg := e.Registry()
	if n, err := strconv.Atoi(key); err == nil {
		if s, ok := reg.Lookup(param.ID(n)); ok {
			return s, true
		}
	}
	if id, ok := reg.ByName(key); ok {
		s, _ := reg.Lookup(id)
		return s, true
	}
	return nil, false
}

func show(e *engine.Engine) {
	reg := e.Registry()
	values := e.Snapshot()
	var group param.Group = -1
	for _, id := range reg.IDs() {
		s, _ := reg.Lookup(id)
		if s.Group != group {
			group = s.Group
			fmt.Printf("\n%s\n", group)
		}
		fmt.Printf("  %3d  %-40s %s\n", id, s.Name, s.Render(values[id]))
	}
}

func get(e *engine.Engine, key string) {
	s, ok := lookup(e, key)
	if !ok {
		fmt.Printf("unknown parameter %q\n", key)
		os.Exit(1)
	}
	v, err := e.Get(s.ID)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s (%d)\n", s.Name, s.Render(v), v)
}

func set(ctx context.Context, e *engine.Engine, key, raw string) {
	s, ok := lookup(e, key)
	if !ok {
		fmt.Printf("unknown parameter %q\n", key)
		os.Exit(1)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Printf("value must be a number: %v\n", err)
		os.Exit(1)
	}

	res, err := e.Set(ctx, s.ID, v)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s", s.Name, s.Render(res.Value))
	if res.Forced {
		fmt.Printf(" (forced from %d by a dependent setting)", res.Requested)
	} else if res.Clamped {
		fmt.Printf(" (clamped from %d)", res.Requested)
	}
	fmt.Println()
	for _, c := range res.Cascade {
		cs, _ := e.Registry().Lookup(c.ID)
		fmt.Printf("  also: %s = %s\n", cs.Name, cs.Render(c.Value))
	}
}

func queryAll(ctx context.Context, e *engine.Engine) {
	if err := e.QueryAll(ctx); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Println("Querying device...")

	for n := range e.Updates() {
		switch n.Type {
		case engine.SyncComplete:
			fmt.Println("Sync complete.")
			show(e)
			return
		case engine.SyncFailed:
			fmt.Printf("Sync failed; %d parameters never answered:\n", len(n.Missing))
			printMissing(e, n.Missing)
			os.Exit(1)
		case engine.TransportLost:
			fmt.Printf("Transport lost: %v\n", n.Err)
			os.Exit(1)
		}
	}
}

func printMissing(e *engine.Engine, missing []param.ID) {
	ids := append([]param.ID(nil), missing...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s, ok := e.Registry().Lookup(id); ok {
			fmt.Printf("  %3d  %s\n", id, s.Name)
		}
	}
}

func push(ctx context.Context, e *engine.Engine) {
	sent, err := e.SendAll(ctx)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent %d parameters.\n", sent)
}

func exportPreset(ctx context.Context, e *engine.Engine, path string) {
	p := preset.Export(e.Registry(), e.Snapshot())
	if err := p.Save(path); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d parameters to %s\n", len(p.Values), path)
}

func importPreset(ctx context.Context, e *engine.Engine, path string) {
	p, err := preset.Load(path)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	values, unknown := p.Resolve(e.Registry())
	for _, name := range unknown {
		fmt.Printf("  skipping unknown parameter %q\n", name)
	}
	applied, skipped, err := e.ApplyValues(ctx, values)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied %d parameters (%d skipped).\n", applied, skipped+len(unknown))
}

func watch(ctx context.Context, e *engine.Engine) {
	fmt.Println("Watching for parameter changes (Ctrl-C to stop)...")
	for n := range e.Updates() {
		if n.Type != engine.ParameterChanged {
			continue
		}
		s, ok := e.Registry().Lookup(n.ID)
		if !ok {
			continue
		}
		origin := "local"
		switch n.Origin {
		case engine.OriginDevice:
			origin = "device"
		case engine.OriginPreset:
			origin = "preset"
		}
		fmt.Printf("[%s] %s = %s\n", origin, s.Name, s.Render(n.Value))
	}
}
