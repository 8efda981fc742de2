package sshtest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Shell is a tiny command interpreter for exec requests. It understands:
//
//	echo ARGS      prints ARGS (surrounding quotes removed)
//	seq N          prints 1..N, one per line
//	sleep SECONDS  waits, or until the server closes
//	exit N         exits with status N
//	cd DIR         does nothing
//	true / false   exit 0 / 1
//
// Commands joined with " && " run in order while they succeed. Anything else
// exits with status 127.
func Shell(ctx context.Context, command string, out io.Writer) uint32 {
	for _, part := range strings.Split(command, " && ") {
		if status := shellStep(ctx, strings.TrimSpace(part), out); status != 0 {
			return status
		}
	}
	return 0
}

func shellStep(ctx context.Context, command string, out io.Writer) uint32 {
	name, arg, _ := strings.Cut(command, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "echo":
		fmt.Fprintln(out, unquote(arg))
		return 0
	case "seq":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return 2
		}
		for i := 1; i <= n; i++ {
			fmt.Fprintln(out, i)
		}
		return 0
	case "sleep":
		secs, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 2
		}
		timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
			return 0
		case <-ctx.Done():
			return 130
		}
	case "exit":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return 2
		}
		return uint32(n)
	case "cd", "true":
		return 0
	case "false":
		return 1
	default:
		return 127
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
