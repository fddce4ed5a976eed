package main

import (
	"fmt"
	"log"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/openvj/arenalink/arena"
	"github.com/openvj/arenalink/toolsrv"
)

const ToolserverVersion = "0.1.0"

var Err *log.Logger

func init() {
	// stdout carries the MCP stream, everything else goes to stderr
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(
		`Arenalink MCP server over stdio.

The default remote is %s:%d. Use --config or the ARENA_HOST /
ARENA_PORT / ARENA_TIMEOUT environment variables. The remote connection
is opened lazily on first tool use, so the server starts even when the
media server is down.

Usage:
    toolserver [--config=<config>] [--dry_run]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<config>    YAML config file.
    --dry_run            Log commands instead of sending them.`,
		arena.DefaultHost,
		arena.DefaultPort,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ToolserverVersion)
	if err != nil {
		panic(err)
	}

	configPath, _ := opts.String("--config")
	config, err := arena.LoadConfig(configPath)
	if err != nil {
		Err.Fatalf("config: %v", err)
	}
	if dryRun, err := opts.Bool("--dry_run"); err == nil && dryRun {
		config.DryRun = true
	}

	settings := arena.DefaultClientSettings()
	settings.ConnectTimeout = config.Timeout
	settings.AckTimeout = config.Timeout

	client := arena.NewClient(config.Host, config.Port, config.DryRun, settings)
	defer client.Disconnect()

	server := toolsrv.NewServer(client, ToolserverVersion)
	if err := server.ServeStdio(); err != nil {
		Err.Fatalf("serve: %v", err)
	}
}
