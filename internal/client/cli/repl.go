package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// execIface is the command surface the REPL drives. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Get(ctx context.Context, path string) error
	Burst(ctx context.Context, n int, paths []string) error
	Stats(ctx context.Context) error
}

// runREPL reads commands from scanner until EOF, "exit" or "quit", or until
// ctx is cancelled. Handler errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "authpipe %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: get <path>, burst <n> <path>..., stats, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login, get <path>, stats, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "get":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: get <path>")
				continue
			}
			err = a.Get(ctx, args[0])

		case "burst":
			n, paths, perr := parseBurstArgs(args)
			if perr != nil {
				fmt.Fprintln(w, "Usage: burst <n> <path>...")
				continue
			}
			err = a.Burst(ctx, n, paths)

		case "stats":
			err = a.Stats(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
	}
}

func parseBurstArgs(args []string) (int, []string, error) {
	if len(args) < 2 {
		return 0, nil, fmt.Errorf("want at least 2 arguments, got %d", len(args))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, nil, err
	}
	if n < 1 {
		return 0, nil, fmt.Errorf("n must be positive, got %d", n)
	}
	return n, args[1:], nil
}
