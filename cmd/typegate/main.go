package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/daemon"
)

const usage = `Usage: typegate <command> [options]

Commands:
  health                          daemon status
  put <name> <source>             store a specification
  get <name>                      show a stored specification
  list                            list stored specifications
  delete <name>                   remove a stored specification
  check                           check a value or file against a spec
  violations                      show recent violations

Run 'typegate <command> -h' for command options.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Load()
	client, err := daemon.Dial(ctx, cfg.SocketPath)
	if err != nil {
		fatalf("connect to daemon at %s: %v (is typegate-daemon running?)", cfg.SocketPath, err)
	}
	defer client.Close()

	switch os.Args[1] {
	case "health":
		runHealth(ctx, client)
	case "put":
		runPut(ctx, client, os.Args[2:])
	case "get":
		runGet(ctx, client, os.Args[2:])
	case "list":
		runList(ctx, client)
	case "delete":
		runDelete(ctx, client, os.Args[2:])
	case "check":
		runCheck(ctx, client, os.Args[2:])
	case "violations":
		runViolations(ctx, client, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runHealth(ctx context.Context, client *daemon.Client) {
	health, err := client.Health(ctx)
	if err != nil {
		fatalf("health: %v", err)
	}
	fmt.Printf("status: %s\nuptime: %ds\nspecs: %d\nviolations: %d\n",
		health.Status, health.UptimeSeconds, health.Specs, health.Violations)
}

func runPut(ctx context.Context, client *daemon.Client, args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	desc := fs.String("desc", "", "specification description")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fatalf("usage: typegate put <name> <source>")
	}

	result, err := client.PutSpec(ctx, fs.Arg(0), fs.Arg(1), *desc)
	if err != nil {
		fatalf("put: %v", err)
	}
	fmt.Printf("stored %s (id %d)\n", result.Name, result.ID)
}

func runGet(ctx context.Context, client *daemon.Client, args []string) {
	if len(args) != 1 {
		fatalf("usage: typegate get <name>")
	}

	info, err := client.GetSpec(ctx, args[0])
	if err != nil {
		fatalf("get: %v", err)
	}
	fmt.Printf("%s = %s\n", info.Name, info.Source)
	if info.Description != "" {
		fmt.Printf("  %s\n", info.Description)
	}
}

func runList(ctx context.Context, client *daemon.Client) {
	result, err := client.ListSpecs(ctx)
	if err != nil {
		fatalf("list: %v", err)
	}
	for _, info := range result.Specs {
		fmt.Printf("%s = %s\n", info.Name, info.Source)
	}
}

func runDelete(ctx context.Context, client *daemon.Client, args []string) {
	if len(args) != 1 {
		fatalf("usage: typegate delete <name>")
	}

	result, err := client.DeleteSpec(ctx, args[0])
	if err != nil {
		fatalf("delete: %v", err)
	}
	if !result.Deleted {
		fatalf("no specification named %q", args[0])
	}
	fmt.Printf("deleted %s\n", args[0])
}

func runCheck(ctx context.Context, client *daemon.Client, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	name := fs.String("spec", "", "name of a stored specification")
	source := fs.String("expr", "", "inline specification expression")
	file := fs.String("file", "", "JSON or YAML document to check")
	value := fs.String("value", "", "inline JSON value to check")
	sampling := fs.String("sampling", "", "enabled or disabled")
	refs := fs.String("forward-refs", "", "eager or lazy")
	fs.Parse(args)

	options := map[string]string{}
	if *sampling != "" {
		options["sampling"] = *sampling
	}
	if *refs != "" {
		options["forward_refs"] = *refs
	}

	var result *checkOutcome
	switch {
	case *file != "" && *value != "":
		fatalf("give -file or -value, not both")
	case *file != "":
		if *name == "" {
			fatalf("-file requires -spec")
		}
		r, err := client.CheckFile(ctx, *file, *name)
		if err != nil {
			fatalf("check: %v", err)
		}
		result = &checkOutcome{OK: r.OK, Violation: r.Violation, Sampled: r.Sampled}
	case *value != "":
		r, err := client.CheckValue(ctx, *name, *source, json.RawMessage(*value), options)
		if err != nil {
			fatalf("check: %v", err)
		}
		result = &checkOutcome{OK: r.OK, Violation: r.Violation, Sampled: r.Sampled}
	default:
		fatalf("give -file or -value")
	}

	if result.OK {
		fmt.Println("ok")
		return
	}
	fmt.Printf("violation: %s\n", result.Violation)
	os.Exit(1)
}

type checkOutcome struct {
	OK        bool
	Violation string
	Sampled   bool
}

func runViolations(ctx context.Context, client *daemon.Client, args []string) {
	fs := flag.NewFlagSet("violations", flag.ExitOnError)
	name := fs.String("spec", "", "filter by specification name")
	limit := fs.Int("n", 20, "maximum number of violations")
	fs.Parse(args)

	result, err := client.RecentViolations(ctx, *name, *limit)
	if err != nil {
		fatalf("violations: %v", err)
	}
	for _, v := range result.Violations {
		where := v.Path
		if where == "" {
			where = v.Slot
		}
		fmt.Printf("%s  %s  %s: %s\n", v.ObservedAt, v.SpecName, where, v.Message)
	}
}
