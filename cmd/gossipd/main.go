package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD)" -o gossipd ./cmd/gossipd
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
		return
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printVersion() {
	fmt.Printf("gossipd %s (%s)\n", version, commit)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: gossipd <command> [options]")
	fmt.Println()
	fmt.Println("  run   [--config path]   Start the gossip node")
	fmt.Println("  init  [--config path]   Write a default configuration file")
	fmt.Println("  version                 Show version information")
	fmt.Println()
	fmt.Println("Without --config, gossipd searches: ./gossipd.yaml, ~/.config/gossipd/config.yaml, /etc/gossipd/config.yaml")
}
