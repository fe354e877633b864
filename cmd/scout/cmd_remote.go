package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/scout94/internal/proto"
	"github.com/gandalfthegui/scout94/internal/remote"
)

var remoteCfg remote.Config

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Deploy the test scripts to a remote host and run them there",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var remoteDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Copy the test scripts to --remote-path on the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqDeployRemote, Remote: &remoteCfg})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return resultErr(resp.Result)
		}
		if err := printResult(resp.Result); err != nil {
			return err
		}
		statusLine(true, fmt.Sprintf("deployed to %s@%s:%s", remoteCfg.User, remoteCfg.Host, remoteCfg.RemotePath))
		return nil
	},
}

var remoteRunCmd = &cobra.Command{
	Use:   "run <type> <target-path>",
	Short: "Run a deployed test suite against a project directory on the host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{
			Type:       proto.ReqRunRemote,
			Remote:     &remoteCfg,
			TestType:   args[0],
			TargetPath: args[1],
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

var remoteCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the host accepts a non-interactive SSH login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request(proto.Request{Type: proto.ReqCheckRemote, Remote: &remoteCfg})
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return checkErr(resp)
		}
		target := fmt.Sprintf("%s@%s", remoteCfg.User, remoteCfg.Host)
		if !resp.Reachable {
			statusLine(false, target+" is not reachable")
			return checkErr(resp)
		}
		statusLine(true, target+" is reachable")
		return nil
	},
}

func checkErr(resp proto.Response) error {
	if resp.Reachable {
		return nil
	}
	return &exitError{code: 1, msg: "remote check failed"}
}

func init() {
	pf := remoteCmd.PersistentFlags()
	pf.StringVar(&remoteCfg.Host, "host", "", "remote host")
	pf.StringVar(&remoteCfg.User, "user", "", "remote user")
	pf.IntVar(&remoteCfg.Port, "port", remote.DefaultPort, "SSH port")
	pf.StringVar(&remoteCfg.KeyPath, "key", "", "private key file")
	pf.StringVar(&remoteCfg.RemotePath, "remote-path", "", "directory holding the test scripts on the host")
	remoteCmd.MarkPersistentFlagRequired("host")
	remoteCmd.MarkPersistentFlagRequired("user")

	remoteCmd.AddCommand(remoteDeployCmd, remoteRunCmd, remoteCheckCmd)
	rootCmd.AddCommand(remoteCmd)
}
