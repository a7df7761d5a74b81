package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slotpaste/agent/internal/agent"
	"github.com/slotpaste/agent/internal/agentlock"
	"github.com/slotpaste/agent/internal/capture"
	"github.com/slotpaste/agent/internal/config"
	"github.com/slotpaste/agent/internal/doctor"
	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/slots"
)

var (
	version    = "0.1.0"
	cfgFile    string
	initConfig bool
)

var rootCmd = &cobra.Command{
	Use:           "slotpaste",
	Short:         "Slotpaste clipboard slot agent",
	Long:          `Slotpaste keeps six clipboard slots (J K L U I O) behind two hotkeys and a small on-screen chooser.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the agent in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startAgent()
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check permissions and the chooser connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		report := doctor.Run(cfg, doctor.SystemProbes())
		report.Write(cmd.OutOrStdout())
		if !report.Ready() {
			return errors.New("slotpaste is not ready to start")
		}
		return nil
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show a preview of each stored slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backing, err := agent.OpenBacking(cfg)
		if err != nil {
			return fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
		}
		if backing == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Storage backend is none: slots only live inside a running agent.")
			return nil
		}
		defer backing.Close()

		stored, err := backing.LoadAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		var saved map[keys.SlotId]time.Time
		if ts, ok := backing.(slots.Timestamped); ok {
			saved = make(map[keys.SlotId]time.Time, len(stored))
			for slot := range stored {
				at, err := ts.UpdatedAt(cmd.Context(), slot)
				if err != nil {
					return fmt.Errorf("load slot times: %w", err)
				}
				saved[slot] = at
			}
		}
		printSlots(cmd.OutOrStdout(), stored, saved)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if initConfig {
			if err := config.SaveTo(cfg, cfgFile); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Config written.")
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Slotpaste v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is slotpaste.yaml in the data dir)")
	configCmd.Flags().BoolVar(&initConfig, "init", false, "write the effective config to the config file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied), errors.Is(err, capture.ErrCaptureUnsupported):
		return "Run 'slotpaste doctor' for setup instructions."
	case errors.Is(err, agentlock.ErrLocked):
		return "Stop the running agent first, or run 'slotpaste doctor' to see what holds the ports."
	}
	return ""
}

// loadConfig loads and validates. Warnings are logged by validation; fatals
// stop the command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if result := cfg.ValidateTiered(); result.HasFatals() {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(result.Fatals...))
	}
	return cfg, nil
}

func startAgent() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	closeLog, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting Slotpaste v%s\n", version)
	return agent.Run(ctx, cfg, agent.Options{})
}

func initLogging(cfg *config.Config) (func(), error) {
	if cfg.LogFile == "" {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
		return func() {}, nil
	}
	rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logging.TeeWriter(os.Stdout, rw))
	return func() { rw.Close() }, nil
}

// printSlots writes one line per slot. saved may be nil when the backing
// keeps no write times.
func printSlots(w io.Writer, stored map[keys.SlotId]string, saved map[keys.SlotId]time.Time) {
	for _, slot := range keys.AllSlots {
		text := stored[slot]
		if text == "" {
			fmt.Fprintf(w, "%s  (empty)\n", slot.Label())
			continue
		}
		if at := saved[slot]; !at.IsZero() {
			fmt.Fprintf(w, "%s  %s  %s\n", slot.Label(), at.Format("2006-01-02 15:04"), logging.Preview(text))
			continue
		}
		fmt.Fprintf(w, "%s  %s\n", slot.Label(), logging.Preview(text))
	}
}

func printConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	if shown.RedisPassword != "" {
		shown.RedisPassword = "********"
	}
	out, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
