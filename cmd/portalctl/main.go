package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sentinel-cyber/portal/cmd/portalctl/cli"
)

const usage = `portalctl manages portal roles and jobs.

Usage:
  portalctl roles validate [--file path] [--json]
  portalctl roles effective [--file path] [--json]
  portalctl permissions merge [--file path] [--json]
  portalctl hierarchy compare <base-role> <base-role>
  portalctl jobs trigger <rbac:audit_roles|rbac:cache_warmup> [--redis addr]
  portalctl jobs stats [--redis addr]

Role and permission documents are JSON; "-" or no --file reads stdin.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
	group, command, rest := args[0], args[1], args[2:]
	switch group + " " + command {
	case "roles validate":
		return fileCommand("roles validate", rest, stdin, stdout, stderr, cli.ValidateCommand)
	case "roles effective":
		return fileCommand("roles effective", rest, stdin, stdout, stderr, cli.EffectiveCommand)
	case "permissions merge":
		return fileCommand("permissions merge", rest, stdin, stdout, stderr, cli.MergeCommand)
	case "hierarchy compare":
		if len(rest) != 2 {
			_, _ = fmt.Fprintln(stderr, "hierarchy compare: expected two base roles")
			return cli.ExitError
		}
		return cli.CompareCommand(rest[0], rest[1], stdout, stderr)
	case "jobs trigger", "jobs stats":
		return jobsCommand(ctx, command, rest, stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitError
	}
}

func fileCommand(name string, args []string, stdin io.Reader, stdout, stderr io.Writer, command func(cli.FileOptions) int) int {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	path := flags.StringP("file", "f", "-", "JSON document to read")
	asJSON := flags.Bool("json", false, "print JSON output")
	if err := flags.Parse(args); err != nil {
		return cli.ExitError
	}
	opts := cli.FileOptions{Path: *path, JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr}
	if *path == "-" {
		opts.Input = stdin
	}
	return command(opts)
}

func jobsCommand(ctx context.Context, command string, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("jobs "+command, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	redisAddr := flags.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address of the job queue")
	if err := flags.Parse(args); err != nil {
		return cli.ExitError
	}

	jobsCLI := cli.NewJobsCLI(*redisAddr)
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch command {
	case "trigger":
		if flags.NArg() != 1 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: expected a job name")
			return cli.ExitError
		}
		info, err := jobsCLI.Trigger(ctx, flags.Arg(0))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return cli.ExitError
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	default:
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return cli.ExitError
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: encode json: %v\n", err)
			return cli.ExitError
		}
	}
	return cli.ExitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
