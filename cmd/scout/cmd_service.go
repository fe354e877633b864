package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/scout94/internal/proto"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that scoutd is up, starting it if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqPing})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		statusLine(true, "scoutd is running")
		return nil
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Inspect the websocket service supervised by scoutd",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the service is running and reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqServiceStatus})
		if err != nil {
			return err
		}
		if printJSON(resp) || resp.Service == nil {
			return nil
		}
		st := resp.Service

		state, color := "stopped", colorDim
		if st.Running {
			state, color = "running", colorGreen
		}
		fmt.Printf("%s%-10s%s %s%s%s\n", colorBold, "STATE", colorReset, color, state, colorReset)
		if st.PID > 0 {
			fmt.Printf("%s%-10s%s %d\n", colorBold, "PID", colorReset, st.PID)
		}
		if st.Dir != "" {
			fmt.Printf("%s%-10s%s %s\n", colorBold, "DIR", colorReset, st.Dir)
		}
		if !st.StartedAt.IsZero() {
			fmt.Printf("%s%-10s%s %s\n", colorBold, "STARTED", colorReset, st.StartedAt.Local().Format(time.DateTime))
		}
		if st.Exit != "" {
			fmt.Printf("%s%-10s%s %s%s%s\n", colorBold, "EXIT", colorReset, colorYellow, st.Exit, colorReset)
		}
		reach, reachColor := "no", colorRed
		if st.Reachable {
			reach, reachColor = "yes", colorGreen
		}
		fmt.Printf("%s%-10s%s %s %s(%s)%s\n", colorBold, "REACHABLE", colorReset, reachColor+reach+colorReset, colorDim, st.URL, colorReset)
		return nil
	},
}

var followLogs bool

var serviceLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the service's buffered output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !followLogs {
			resp, err := request(proto.Request{Type: proto.ReqServiceLogs})
			if err != nil {
				return err
			}
			if printJSON(resp) {
				return nil
			}
			fmt.Print(resp.Content)
			return nil
		}

		conn, r, resp, err := dial(proto.Request{Type: proto.ReqServiceLogs, Follow: true})
		if err != nil {
			return err
		}
		defer conn.Close()
		if !resp.OK {
			return responseError(resp)
		}
		// Raw output follows the JSON line until the service stops.
		_, err = io.Copy(os.Stdout, r)
		return err
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop scoutd, its service and any orphaned service processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sock := filepath.Join(rootDir(), "scoutd.sock")
		if !pingDaemon(sock) {
			fmt.Printf("%sscoutd is not running%s\n", colorDim, colorReset)
			return nil
		}
		resp, err := request(proto.Request{Type: proto.ReqShutdown})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		// The daemon stops listening first, then tears down the service.
		for i := 0; i < 50 && pingDaemon(sock); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		statusLine(true, "scoutd stopped")
		return nil
	},
}

func init() {
	serviceLogsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false, "keep streaming new output")

	serviceCmd.AddCommand(serviceStatusCmd, serviceLogsCmd)
	rootCmd.AddCommand(pingCmd, serviceCmd, shutdownCmd)
}
