package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gandalfthegui/scout94/internal/proc"
)

// exitError makes scout exit with the remote or child process's code
// instead of the generic 1.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// printResult prints a command result's output and turns an unsuccessful
// result into an exitError.
func printResult(res *proc.Result) error {
	if res == nil {
		return nil
	}
	if res.Output != "" {
		fmt.Print(res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Println()
		}
	}
	if res.Success && res.Error != "" {
		fmt.Fprint(os.Stderr, res.Error)
	}
	return resultErr(res)
}

// resultErr maps an unsuccessful result to an exitError carrying its exit
// code, or 1 when there is none. It prints nothing, so --json output can
// use it too.
func resultErr(res *proc.Result) error {
	if res == nil || res.Success {
		return nil
	}
	msg := res.Error
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", res.ExitCode)
	}
	code := res.ExitCode
	if code <= 0 {
		code = 1
	}
	return &exitError{code: code, msg: msg}
}

func statusLine(ok bool, what string) {
	if ok {
		fmt.Fprintf(os.Stdout, "%s✓%s  %s\n", colorGreen+colorBold, colorReset, what)
		return
	}
	fmt.Fprintf(os.Stdout, "%s✗%s  %s\n", colorRed+colorBold, colorReset, what)
}
