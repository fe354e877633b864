// scout – the CLI client for the scoutd daemon.
//
// Usage:
//
//	scout project [path]              – select a project or show the selection
//	scout test <type>                 – run a test suite against the project
//	scout screenshots                 – list the project's screenshots
//	scout screenshot <path> -o <file> – fetch one screenshot
//	scout cat <file> | write <file>   – read or replace a text file
//	scout ls <dir> | tree <dir>       – browse the filesystem
//	scout exec [--cwd dir] -- <prog> [args...]
//	scout remote deploy|run|check     – work against a remote host over SSH
//	scout service status|logs [-f]    – inspect the websocket service
//	scout shutdown                    – stop scoutd and its service
//
// scout will start the daemon automatically if it is not already running.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gandalfthegui/scout94/internal/proto"
)

var (
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorReset  = "\033[0m"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "scout",
	Short:         "Control panel for the scout94 test harness",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonOutput || !term.IsTerminal(int(os.Stdout.Fd())) {
			disableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print the raw daemon response as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sscout:%s %v\n", colorRed, colorReset, err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func disableColor() {
	colorBold, colorDim, colorRed, colorGreen = "", "", "", ""
	colorYellow, colorCyan, colorReset = "", "", ""
}

// printJSON writes resp as indented JSON and reports whether --json was set.
func printJSON(resp proto.Response) bool {
	if !jsonOutput {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(resp)
	return true
}
