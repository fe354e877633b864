package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gandalfthegui/scout94/internal/proto"
)

var watchBanner = []string{
	`                       __    ____  __ __`,
	`   ______________  __ / /_  / __ \/ // /`,
	`  / ___/ ___/ __ \/ / / __/ / /_/ / // /_`,
	` (__  ) /__/ /_/ / /_/ /_   \__, /__  __/`,
	`/____/\___/\____/\__,_/\__/  /____/  /_/`,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the service status and its latest output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, err := daemonSocket()
		if err != nil {
			return err
		}
		fd := int(os.Stdout.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("watch needs a terminal")
		}

		// Enter alternate screen buffer; restore on exit.
		fmt.Print("\033[?1049h\033[?25l")
		defer fmt.Print("\033[?25h\033[?1049l")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		winchCh := make(chan os.Signal, 1)
		signal.Notify(winchCh, syscall.SIGWINCH)
		defer signal.Stop(sigCh)
		defer signal.Stop(winchCh)

		drawWatch(fd, socketPath)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-sigCh:
				return nil
			case <-winchCh:
				drawWatch(fd, socketPath)
			case <-ticker.C:
				drawWatch(fd, socketPath)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func drawWatch(fd int, socketPath string) {
	width, height, err := term.GetSize(fd)
	if err != nil || width < 40 {
		width = 120
	}
	if err != nil || height < 10 {
		height = 40
	}

	statusResp, err := tryRequest(socketPath, proto.Request{Type: proto.ReqServiceStatus})
	if err != nil || statusResp.Service == nil {
		fmt.Printf("\033[H\033[2Jdaemon not reachable: %v\n", err)
		return
	}
	logsResp, err := tryRequest(socketPath, proto.Request{Type: proto.ReqServiceLogs})
	if err != nil {
		fmt.Printf("\033[H\033[2Jdaemon not reachable: %v\n", err)
		return
	}
	st := statusResp.Service

	var buf strings.Builder
	buf.WriteString("\033[H")

	bannerW := 0
	for _, l := range watchBanner {
		bannerW = max(bannerW, len(l))
	}
	pad := strings.Repeat(" ", max(0, (width-bannerW)/2))
	buf.WriteString("\033[36m")
	for _, l := range watchBanner {
		buf.WriteString(pad + l + "\033[K\n")
	}
	buf.WriteString("\033[0m\033[K\n")

	state, color := "STOPPED", "\033[2m"
	if st.Running {
		state, color = "RUNNING", "\033[32m"
	}
	uptime := "-"
	if st.Running && !st.StartedAt.IsZero() {
		uptime = formatUptime(int64(time.Since(st.StartedAt).Seconds()))
	}
	reach := "\033[31mno\033[0m"
	if st.Reachable {
		reach = "\033[32myes\033[0m"
	}
	fmt.Fprintf(&buf, "%-10s  %-8s  %-10s  %-9s  %s\033[K\n", "STATE", "PID", "UPTIME", "REACHABLE", "DIR")
	fmt.Fprintf(&buf, "\033[2m%s  %s  %s  %s  %s\033[0m\033[K\n",
		strings.Repeat("─", 10), strings.Repeat("─", 8), strings.Repeat("─", 10),
		strings.Repeat("─", 9), strings.Repeat("─", max(3, width-46)))
	pid := "-"
	if st.PID > 0 {
		pid = fmt.Sprint(st.PID)
	}
	// reach carries escape codes, so pad it by its visible width.
	fmt.Fprintf(&buf, "%s%-10s\033[0m  %-8s  %-10s  %s%s  %s\033[K\n",
		color, state, pid, uptime, reach, strings.Repeat(" ", 9-len(stripANSI(reach))),
		truncate(st.Dir, max(3, width-46)))
	if st.Exit != "" {
		fmt.Fprintf(&buf, "\033[33mlast exit: %s\033[0m\033[K\n", truncate(st.Exit, width-11))
	}
	buf.WriteString("\033[K\n")

	// Fill the rest of the screen with the newest output lines.
	used := len(watchBanner) + 5
	if st.Exit != "" {
		used++
	}
	lines := strings.Split(strings.TrimRight(logsResp.Content, "\n"), "\n")
	if room := height - used - 1; room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	for _, l := range lines {
		buf.WriteString(truncate(strings.TrimRight(l, "\r"), width) + "\033[K\n")
	}
	buf.WriteString("\033[J")

	fmt.Print(buf.String())
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func formatUptime(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%dh%02dm", secs/3600, (secs%3600)/60)
}
