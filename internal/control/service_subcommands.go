package control

import (
	"fmt"
	"os"
	"strings"

	"holdtalk/internal/config"
	"holdtalk/internal/service"

	"github.com/spf13/cobra"
)

// NewServiceRootCmd groups service install/uninstall/status.
func NewServiceRootCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the per-user service (launchd on macOS, systemd on Linux)",
	}
	cmd.AddCommand(newServiceInstallCmd(cfgPath))
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the per-user service definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env := make(map[string]string)
			for _, p := range envPairs {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("bad env %q, want KEY=VAL", p)
				}
				env[k] = v
			}
			kind := service.Current()
			params := service.Params{
				Label:  service.Label,
				Binary: exe,
				Config: cfg.Paths.ConfigPath,
				Log:    cfg.Paths.LogPath,
				Env:    env,
			}
			path, err := service.Install(kind, params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s definition written: %s\n", kind, path)
			if kind == service.Launchd {
				fmt.Fprintln(out, "Load:   launchctl load -w", path)
				fmt.Fprintf(out, "Start:  launchctl kickstart gui/$(id -u)/%s\n", params.Label)
				fmt.Fprintf(out, "Stop:   launchctl bootout gui/$(id -u)/%s\n", params.Label)
			} else {
				fmt.Fprintf(out, "Enable: systemctl --user enable --now %s.service\n", params.Label)
				fmt.Fprintf(out, "Stop:   systemctl --user stop %s.service\n", params.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "Env to set in the service definition (KEY=VAL)")
	return cmd
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the per-user service definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := service.Uninstall(service.Current(), service.Label)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s (if present); unload it with your service manager\n", path)
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the service definition path and whether it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := service.Status(service.Current(), service.Label)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", service.Current(), path)
			if ok {
				fmt.Fprintln(out, "status: present")
			} else {
				fmt.Fprintln(out, "status: missing (install via: holdtalk service install)")
			}
			return nil
		},
	}
}
