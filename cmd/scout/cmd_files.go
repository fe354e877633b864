package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/scout94/internal/fsbrowse"
	"github.com/gandalfthegui/scout94/internal/proto"
)

var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqReadFile, Path: absPath(args[0])})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		fmt.Print(resp.Content)
		return nil
	},
}

var writeFrom string

var writeCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Replace a text file with stdin (or --from), creating parent directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			content []byte
			err     error
		)
		if writeFrom != "" {
			content, err = os.ReadFile(writeFrom)
		} else {
			content, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		target := absPath(args[0])
		resp, err := request(proto.Request{Type: proto.ReqWriteFile, Path: target, Content: string(content)})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		statusLine(true, fmt.Sprintf("wrote %s", target))
		return nil
	},
}

var execCwd string

var execCmd = &cobra.Command{
	Use:   "exec [--cwd dir] -- <program> [args...]",
	Short: "Run a program through the daemon and print its combined output",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{
			Type:    proto.ReqExec,
			Command: args[0],
			Args:    args[1:],
			Cwd:     absPathOrEmpty(execCwd),
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

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		resp, err := request(proto.Request{Type: proto.ReqListDir, Path: absPath(dir)})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		for _, e := range resp.Entries {
			if e.IsDirectory {
				fmt.Printf("%s%10s%s  %s%s/%s\n", colorDim, "-", colorReset, colorCyan, e.Name, colorReset)
				continue
			}
			size := "?"
			if e.Size != nil {
				size = fmt.Sprint(*e.Size)
			}
			fmt.Printf("%10s  %s\n", size, e.Name)
		}
		return nil
	},
}

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Show a filtered project tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		resp, err := request(proto.Request{Type: proto.ReqReadTree, Path: absPath(dir), MaxDepth: treeDepth})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		printTree(resp.Tree, "")
		return nil
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeFrom, "from", "", "read the new content from this local file")
	execCmd.Flags().StringVar(&execCwd, "cwd", "", "working directory for the program")
	execCmd.Flags().SetInterspersed(false)
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, fmt.Sprintf("maximum depth (default %d)", fsbrowse.DefaultMaxDepth))

	rootCmd.AddCommand(catCmd, writeCmd, execCmd, lsCmd, treeCmd)
}

func printTree(nodes []fsbrowse.Node, indent string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		name := n.Name
		switch {
		case n.IsDirectory:
			name = colorCyan + name + "/" + colorReset
		case n.Language != "":
			name += " " + colorDim + strings.ToLower(n.Language) + colorReset
		}
		fmt.Printf("%s%s%s\n", indent, branch, name)
		if len(n.Children) > 0 {
			printTree(n.Children, indent+next)
		}
	}
}
