package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/verigen/physmem/cmd/memexplorer/logger"
	"github.com/verigen/physmem/mem/sim"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		debugMode   = flag.Bool("debug", false, "Enable debug logging to ~/.memexplorer/logs/")
		seed        = flag.Uint64("seed", 0, "Seed for the simulated request stream")
		ops         = flag.Int("ops", 512, "Number of page requests to issue")
		memSize     = flag.Uint64("mem-size", 1<<24, "Usable physical memory size in bytes")
		aliasPct    = flag.Int("alias-percent", 30, "Chance (0-100) a request prefers aliasing")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("memexplorer %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		os.Exit(0)
	}

	// Initialize logger (must be before any logging calls)
	if err := logger.Init(logger.Options{
		Enabled: *debugMode,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	cfg := sim.Config{
		Seed:         *seed,
		Ops:          *ops,
		MemSize:      *memSize,
		AliasPercent: *aliasPct,
	}
	logger.Info("starting memexplorer",
		"seed", cfg.Seed, "ops", cfg.Ops, "mem_size", cfg.MemSize, "debug", *debugMode)

	m := NewModel(cfg)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}

	logger.Info("memexplorer exited normally")
}

func printHelp() {
	fmt.Println("memexplorer - Interactive TUI for the physical memory allocation engine")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  memexplorer [options]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs a seeded synthetic request stream against one allocation engine")
	fmt.Println("  instance and opens an interactive view of the result.")
	fmt.Println()
	fmt.Println("  Features:")
	fmt.Println("    - Split-pane layout (physical page index + range bookkeeping)")
	fmt.Println("    - Request trace view showing every issued request and its outcome")
	fmt.Println("    - Deterministic replay: equal seeds produce identical layouts")
	fmt.Println()
	fmt.Println("  Navigation:")
	fmt.Println("    ↑/k, ↓/j    Navigate up/down")
	fmt.Println("    Tab         Switch between page and bookkeeping panes")
	fmt.Println("    t           Toggle the request trace view")
	fmt.Println("    r           Replay with the next seed")
	fmt.Println("    ?           Show help")
	fmt.Println("    q           Quit")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --seed N           Seed for the request stream (default 0)")
	fmt.Println("  --ops N            Number of requests to issue (default 512)")
	fmt.Println("  --mem-size N       Usable physical memory in bytes (default 16MiB)")
	fmt.Println("  --alias-percent N  Chance a request prefers aliasing (default 30)")
	fmt.Println("  --debug            Enable debug logging to ~/.memexplorer/logs/")
	fmt.Println("  --version          Show version information")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  memexplorer --seed 42 --ops 2000")
	fmt.Println()
	fmt.Println("For non-interactive runs, use the 'physctl simulate' command instead.")
}
