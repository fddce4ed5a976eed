package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/openvj/arenalink/arena"
)

const ArenactlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(
		`Arenalink control.

The default remote is %s:%d. Use --config, the flags below, or the
ARENA_HOST / ARENA_PORT / ARENA_TIMEOUT environment variables.

Usage:
    arenactl dump [--path=<path>] [options]
    arenactl get <path> [options]
    arenactl set <path> <value> [options]
    arenactl trigger <path> [options]
    arenactl post <path> [<value>] [options]
    arenactl watch <path>... [options]
    arenactl ops [<query>] [options]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<config>      YAML config file.
    --host=<host>          Remote host.
    --port=<port>          Remote port.
    --timeout=<timeout>    Command timeout with time units: ms, s, m.
    --dry_run              Log commands instead of sending them.
    --path=<path>          Subtree to dump instead of the whole composition.`,
		arena.DefaultHost,
		arena.DefaultPort,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ArenactlVersion)
	if err != nil {
		panic(err)
	}

	client, config := newClient(opts)

	if dump_, _ := opts.Bool("dump"); dump_ {
		dump(opts, client, config)
	} else if get_, _ := opts.Bool("get"); get_ {
		get(opts, client, config)
	} else if set_, _ := opts.Bool("set"); set_ {
		set(opts, client, config)
	} else if trigger_, _ := opts.Bool("trigger"); trigger_ {
		trigger(opts, client, config)
	} else if post_, _ := opts.Bool("post"); post_ {
		post(opts, client, config)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts, client, config)
	} else if ops_, _ := opts.Bool("ops"); ops_ {
		ops(opts, client)
	}
}

func newClient(opts docopt.Opts) (*arena.Client, *arena.Config) {
	configPath, _ := opts.String("--config")
	config, err := arena.LoadConfig(configPath)
	if err != nil {
		Err.Fatalf("config: %v", err)
	}

	if host, err := opts.String("--host"); err == nil && host != "" {
		config.Host = host
	}
	if portStr, err := opts.String("--port"); err == nil && portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			Err.Fatalf("bad port: %v", err)
		}
		config.Port = port
	}
	if timeoutStr, err := opts.String("--timeout"); err == nil && timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			Err.Fatalf("bad timeout: %v", err)
		}
		config.Timeout = timeout
	}
	if dryRun, err := opts.Bool("--dry_run"); err == nil && dryRun {
		config.DryRun = true
	}

	settings := arena.DefaultClientSettings()
	settings.ConnectTimeout = config.Timeout
	settings.AckTimeout = config.Timeout

	return arena.NewClient(config.Host, config.Port, config.DryRun, settings), config
}

func connect(client *arena.Client) {
	if err := client.Connect(context.Background()); err != nil {
		Err.Fatalf("connect: %v", err)
	}
}

func printJson(value any) {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		Err.Fatalf("marshal: %v", err)
	}
	Out.Printf("%s\n", out)
}

func dump(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	connect(client)
	defer client.Disconnect()

	if path, err := opts.String("--path"); err == nil && path != "" {
		value, ok := client.Tree().Resolve(path)
		if !ok {
			Err.Fatalf("no such path: %s", path)
		}
		printJson(value)
		return
	}
	printJson(client.Tree().Snapshot())
}

func get(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	path, _ := opts.String("<path>")

	connect(client)
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	value, err := client.SendAndWait(ctx, arena.ActionGet, path, nil)
	if err != nil {
		// the mirror keeps the last pushed value even when the remote
		// does not echo an explicit get
		if cached, ok := client.Tree().Resolve(path); ok {
			printJson(cached)
			return
		}
		Err.Fatalf("get %s: %v", path, err)
	}
	printJson(value)
}

func set(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	path, _ := opts.String("<path>")
	valueStr, _ := opts.String("<value>")
	value := parseValue(valueStr)

	connect(client)
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	echoed, err := client.SendAndWait(ctx, arena.ActionSet, path, value)
	if err != nil {
		Err.Fatalf("set %s: %v", path, err)
	}
	Out.Printf("%s = %v\n", path, echoed)
}

func trigger(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	path, _ := opts.String("<path>")

	connect(client)
	defer client.Disconnect()

	if err := client.SendCommand(arena.ActionTrigger, path, nil); err != nil {
		Err.Fatalf("trigger %s: %v", path, err)
	}
	Out.Printf("triggered %s\n", path)
}

func post(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	path, _ := opts.String("<path>")
	var body any
	if valueStr, err := opts.String("<value>"); err == nil && valueStr != "" {
		body = parseValue(valueStr)
	}

	connect(client)
	defer client.Disconnect()

	if err := client.SendCommand(arena.ActionPost, path, body); err != nil {
		Err.Fatalf("post %s: %v", path, err)
	}
	Out.Printf("posted %s\n", path)
}

func watch(opts docopt.Opts, client *arena.Client, config *arena.Config) {
	paths := []string{}
	if pathStrs, ok := opts["<path>"]; ok {
		if v, ok := pathStrs.([]string); ok {
			paths = append(paths, v...)
		}
	}

	connect(client)
	defer client.Disconnect()

	remove := client.Session().AddUpdateCallback(func(path string, value any) {
		if path == "" {
			Out.Printf("%s snapshot\n", time.Now().Format(time.TimeOnly))
			return
		}
		Out.Printf("%s %s = %v\n", time.Now().Format(time.TimeOnly), path, value)
	})
	defer remove()

	for _, path := range paths {
		if err := client.Subscribe(path); err != nil {
			Err.Fatalf("subscribe %s: %v", path, err)
		}
		Out.Printf("watching %s\n", path)
	}

	// watch survives remote restarts
	reconnector := arena.NewReconnectorWithDefaults(context.Background(), client)
	defer reconnector.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func ops(opts docopt.Opts, client *arena.Client) {
	query, _ := opts.String("<query>")

	if query == "" {
		for _, operation := range arena.Operations() {
			Out.Printf("%s\n    %s\n", operation.Signature, operation.Description)
		}
		return
	}

	result := client.Search(query)
	for _, operation := range result.Operations {
		Out.Printf("%s\n    %s\n", operation.Signature, operation.Description)
	}
	for _, match := range result.Paths {
		if match.HasValue {
			Out.Printf("%s  (value=%v)\n", match.Path, match.Value)
		} else {
			Out.Printf("%s\n", match.Path)
		}
	}
}

func parseValue(valueStr string) any {
	var value any
	if err := json.Unmarshal([]byte(valueStr), &value); err != nil {
		// bare strings pass through unquoted
		return valueStr
	}
	return value
}
