package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/proxyswitch/internal/api"
	"github.com/user/proxyswitch/internal/browser"
	"github.com/user/proxyswitch/internal/logger"
	"github.com/user/proxyswitch/internal/state"
	"github.com/user/proxyswitch/internal/sysproxy"
	"github.com/user/proxyswitch/internal/target"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "proxyswitch",
		Short: "ProxySwitch - route this machine through an upstream proxy",
		Long: `ProxySwitch points the environment, shell profiles and the desktop's
proxy settings at an upstream HTTP or SOCKS proxy, and puts them back
when you disconnect.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(reconnectCmd())
	rootCmd.AddCommand(disconnectCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(envCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(browserCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectCmd creates the connect command
func connectCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "connect [host] [port]",
		Short: "Apply proxy settings everywhere",
		Long: `Apply the proxy to every configuration surface of this OS.
Without arguments the target comes from the config file or PROXY_IP/PROXY_PORT.
The target is saved as the new default.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.resolveTarget(args, kind, false)
			if err != nil {
				return err
			}
			report, err := a.mgr.Connect(cmd.Context(), t)
			if err != nil {
				return err
			}
			if !report.OK {
				return errors.New("connect failed")
			}
			if err := a.cfgManager.SetLastTarget(t); err != nil {
				fmt.Printf("Warning: failed to save target: %v\n", err)
			}
			fmt.Println("\nRun 'eval $(proxyswitch env)' to update this shell.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "proxy kind: http, socks4 or socks5")
	return cmd
}

// reconnectCmd creates the reconnect command
func reconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Re-apply the active proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.mgr.Reconnect(cmd.Context())
			if err != nil {
				return err
			}
			if !report.OK {
				return errors.New("reconnect failed")
			}
			return nil
		},
	}
}

// disconnectCmd creates the disconnect command
func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Remove proxy settings everywhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.mgr.Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("\nRun 'eval $(proxyswitch env --unset)' to update this shell.")
			return nil
		},
	}
}

// testCmd creates the test command
func testCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "test [host] [port]",
		Short: "Check that a proxy accepts connections and relays traffic",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.resolveTarget(args, kind, true)
			if err != nil {
				return err
			}
			report := a.mgr.TestConnection(cmd.Context(), t)
			if !report.Passed() {
				return errors.New("connection test failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "proxy kind: http, socks4 or socks5")
	return cmd
}

// statusCmd creates the status command
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.mgr.Status()
			fmt.Printf("Status: %s\n", st)
			if st.Active {
				fmt.Printf("Since: %s\n", st.Since.Local().Format(time.DateTime))
				fmt.Printf("Session: %s\n", st.Session)
			}
			fmt.Printf("Surfaces: %s\n", strings.Join(a.mgr.Adapters(), ", "))
			fmt.Printf("Config File: %s\n", a.cfgManager.Path())
			fmt.Printf("State File: %s\n", a.cfg.StateFile)
			fmt.Printf("Log File: %s\n", a.cfg.LogPath())
			fmt.Printf("Bypass: %s\n", strings.Join(a.cfg.BypassList().Patterns(), ", "))
			return nil
		},
	}
}

// envCmd creates the env command
func envCmd() *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print shell commands that set or clear the proxy variables",
		Long: `Print export lines for the active proxy, or an unset line when
disconnected. Use with eval: eval $(proxyswitch env)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := cfgManager.Get()
			// Read the state file directly: output is eval'd, so no logging.
			f, err := state.NewStore(cfg.StateFile).Load()
			if err != nil {
				return err
			}

			t, ok := f.State.ProxyTarget()
			if unset || !ok {
				fmt.Println(sysproxy.UnsetLine())
				return nil
			}
			for _, line := range sysproxy.ExportLines(t, cfg.BypassList()) {
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&unset, "unset", "u", false, "print the unset line regardless of state")
	return cmd
}

// snapshotCmd creates the snapshot command
func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Show the settings recorded before the last connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.mgr.Snapshot()
			if snap == nil {
				fmt.Println("No snapshot recorded")
				return nil
			}
			fmt.Printf("Session: %s\n", snap.Session)
			fmt.Printf("Taken: %s\n", snap.TakenAt.Local().Format(time.DateTime))
			keys := make([]string, 0, len(snap.Values))
			for k := range snap.Values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s: %s\n", k, snap.Values[k])
			}
			return nil
		},
	}
}

// serveCmd creates the serve command
func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.cfg.API.Listen
			}
			srv := api.NewServer(a.mgr, nil)
			srv.Fallback = func() (target.ProxyTarget, bool) {
				t, ok, _ := a.cfg.Target()
				return t, ok
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("ProxySwitch API listening on http://%s/api\n", listen)
			fmt.Println("Press Ctrl+C to stop")
			return api.ListenAndServe(ctx, listen, srv.Handler())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from config)")
	return cmd
}

// browserCmd creates the browser command
func browserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browser",
		Short: "Open Chrome/Chromium pinned to the active proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.mgr.Status()
			t, _ := st.ProxyTarget()
			path, err := browser.NewLauncher(a.runner, nil).Launch(t, st.Active)
			if err != nil {
				return err
			}
			fmt.Printf("Launched %s with proxy %s\n", path, browser.ProxyServerArg(t))
			fmt.Println("Check an IP lookup page to verify it's working.")
			return nil
		},
	}
}

// logsCmd creates the logs command
func logsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View proxyswitch logs",
		Long:  "View the proxyswitch log file. Use -f to follow the log in real-time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := logger.GetLogPath()
			if cfgManager, err := loadConfig(); err == nil {
				logPath = cfgManager.Get().LogPath()
			}

			info, err := os.Stat(logPath)
			if os.IsNotExist(err) {
				fmt.Printf("Log file not found: %s\n", logPath)
				fmt.Println("The log file will be created when proxyswitch runs.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Log file: %s\n\n", logPath)
			tail, err := logger.Tail(logPath, lines)
			if err != nil {
				return fmt.Errorf("failed to read logs: %w", err)
			}
			for _, line := range tail {
				fmt.Println(line)
			}

			if follow {
				fmt.Println("--- following (Ctrl+C to stop)")
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return logger.Follow(ctx, logPath, info.Size(), os.Stdout)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output in real-time")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

// configCmd creates the config command
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the config file path and effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfgManager.Get())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Printf("Config File: %s\n\n", cfgManager.Path())
			fmt.Print(string(data))
			return nil
		},
	}
}

func secondsOr(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
