package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/scout94/internal/proto"
	"github.com/gandalfthegui/scout94/internal/scripts"
)

var projectOverride string

var projectCmd = &cobra.Command{
	Use:   "project [path]",
	Short: "Select the project under test, or show the current selection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := proto.Request{Type: proto.ReqSelectProject}
		if len(args) == 1 {
			req.Path = absPath(args[0])
		}
		resp, err := request(req)
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		if resp.Project == "" {
			fmt.Printf("%sno project selected%s\n", colorDim, colorReset)
			return nil
		}
		fmt.Printf("%sProject:%s %s%s%s\n", colorBold, colorReset, colorCyan, resp.Project, colorReset)
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test <type>",
	Short: "Run a test suite against the selected project",
	Long: fmt.Sprintf(`Run one of the test suites against the selected project.

Known types: %s.
Any other type runs the full suite.`, strings.Join(scripts.Selectors(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{
			Type:     proto.ReqRunTest,
			TestType: args[0],
			Project:  absPathOrEmpty(projectOverride),
		})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return resultErr(resp.Result)
		}
		return printResult(resp.Result)
	},
}

var screenshotsCmd = &cobra.Command{
	Use:   "screenshots",
	Short: "List screenshots in the project's test-screenshots directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{
			Type:    proto.ReqListScreenshots,
			Project: absPathOrEmpty(projectOverride),
		})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		if len(resp.Paths) == 0 {
			fmt.Printf("%sno screenshots%s\n", colorDim, colorReset)
			return nil
		}
		for _, p := range resp.Paths {
			fmt.Println(p)
		}
		return nil
	},
}

var screenshotOut string

var screenshotCmd = &cobra.Command{
	Use:   "screenshot <path>",
	Short: "Fetch one screenshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqReadScreenshot, Path: absPath(args[0])})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		if screenshotOut == "" || screenshotOut == "-" {
			_, err := os.Stdout.Write(resp.Data)
			return err
		}
		if err := os.WriteFile(screenshotOut, resp.Data, 0o644); err != nil {
			return err
		}
		statusLine(true, fmt.Sprintf("wrote %d bytes to %s", len(resp.Data), screenshotOut))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{testCmd, screenshotsCmd} {
		c.Flags().StringVar(&projectOverride, "project", "", "project directory (default: the selected project)")
	}
	screenshotCmd.Flags().StringVarP(&screenshotOut, "output", "o", "", "write the image here instead of stdout")

	rootCmd.AddCommand(projectCmd, testCmd, screenshotsCmd, screenshotCmd)
}

// absPath resolves p against the client's working directory; the daemon
// runs elsewhere.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func absPathOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	return absPath(p)
}
