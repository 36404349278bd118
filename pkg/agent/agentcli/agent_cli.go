package agentcli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/neuroplastio/psmove-bridge/internal/debugcmd"
	"github.com/neuroplastio/psmove-bridge/pkg/agent"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "psmove-bridge"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:      filepath.Join(configDir, "data"),
		SettingsPath: filepath.Join(configDir, "settings.yml"),
		FrameRate:    agent.DefaultFrameRate,
	}
	rootCmd := &cobra.Command{
		Use:   "psmove-bridge",
		Short: "PSMoveService bridge",
		Long:  `The PSMoveService bridge exposes controllers and trackers of a PSMoveService instance to a VR host.`,
	}
	var a *agent.Agent
	agentProvider := func() *agent.Agent {
		return a
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.SettingsPath, "settings", cfg.SettingsPath, "settings file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a == nil {
			return nil
		}
		return a.Close()
	}
	rootCmd.AddCommand(NewRun(agentProvider, &cfg))
	rootCmd.AddCommand(NewListDevices(agentProvider))
	rootCmd.AddCommand(NewParseDebug())
	return rootCmd
}

func NewRun(agent agentProvider, cfg *agent.Config) *cobra.Command {
	var debugStdin bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		Long:  `Connects to PSMoveService and drives the devices it reports, reconnecting when the service goes away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debugStdin {
				go forwardDebugRequests(cmd, agent())
			}
			return agent().Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cfg.Address, "address", "", "tracking service address, overrides the settings file")
	cmd.Flags().IntVar(&cfg.Port, "port", 0, "tracking service port, overrides the settings file")
	cmd.Flags().IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "frames per second")
	cmd.Flags().StringSliceVar(&cfg.CompanionCommand, "companion", nil, "companion command and arguments, comma separated")
	cmd.Flags().BoolVar(&debugStdin, "debug-stdin", false, "read \"<serial> <command>\" debug requests from stdin")
	return cmd
}

// forwardDebugRequests reads one debug request per line until stdin is closed.
func forwardDebugRequests(cmd *cobra.Command, a *agent.Agent) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		serial, text, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "usage: <serial> <command>")
			continue
		}
		reply, err := a.DebugRequest(cmd.Context(), serial, text)
		if err != nil {
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
	}
}

func NewListDevices(agent agentProvider) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list-devices",
		Short: "List known devices",
		Long:  `List every device the tracking service has reported, with first and last seen times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := agent().Devices()
			if err != nil {
				return err
			}
			var b []byte
			switch format {
			case "json":
				b, err = json.MarshalIndent(devices, "", "  ")
			case "yaml":
				b, err = yaml.Marshal(devices)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(b), "\n"))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}

func NewParseDebug() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-debug <command>",
		Short: "Parse a debug channel command",
		Long:  `Parse a debug channel command such as "psmove:hmd_pose <12 values>" and print the head pose it carries.`,
		Args:  cobra.MinimumNArgs(1),
		// Matrix values are often negative and must not be read as flags.
		DisableFlagParsing: true,
		// Parsing needs no agent.
		PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := debugcmd.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			pose, err := parsed.HeadPose()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(pose, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}
