package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/client"
	"github.com/andresmejia3/depthbrush/internal/config"
	"github.com/andresmejia3/depthbrush/internal/pipeline"
	"github.com/andresmejia3/depthbrush/internal/store"
	"github.com/andresmejia3/depthbrush/internal/stream"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

// GlobalFlags override values loaded from the config file.
type GlobalFlags struct {
	ConfigPath string
	BackendURL string
	Archive    string
	ArchiveURL string
	LogMode    string
	Notify     bool
}

var (
	globals GlobalFlags

	// Cfg is the resolved configuration shared by subcommands
	Cfg *config.Config
	// Archive persists artifacts between invocations. Nil when archive.driver is none.
	Archive artifact.Archive
)

// Version is the application version.
const Version = "0.1.0"

// skipArchive marks commands that never touch the archive.
const skipArchive = "skip-archive"

var rootCmd = &cobra.Command{
	Use:           "depthbrush",
	Short:         "Scribble depth annotations and drive the depth pipeline",
	Version:       Version, // This enables the --version flag
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globals.ConfigPath)
		if err != nil {
			return err
		}
		if err := applyGlobalFlags(cmd, cfg); err != nil {
			return err
		}
		Cfg = cfg

		if err := utils.InitLogger(cfg.Log.Mode); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if _, ok := cmd.Annotations[skipArchive]; ok {
			return nil
		}
		// Use the command's context (which will be cancellable) for the connection
		Archive, err = openArchive(cmd.Context(), cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to open %s archive: %w", cfg.Archive.Driver, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Archive != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to close the connection cleanly.
			Archive.Close(context.Background())
		}
		utils.Sync()
	},
}

// applyGlobalFlags lets explicitly set persistent flags win over file and env values.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.URL = globals.BackendURL
	}
	if flags.Changed("archive") {
		cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(globals.Archive))
		if cfg.Archive.Driver == config.ArchivePostgres && cfg.Archive.URL == "" {
			cfg.Archive.URL = config.PostgresURLFromEnv()
		}
	}
	if flags.Changed("archive-url") {
		cfg.Archive.URL = globals.ArchiveURL
	}
	if flags.Changed("log-mode") {
		cfg.Log.Mode = globals.LogMode
	}
	if flags.Changed("notify") {
		cfg.Notify.Enabled = globals.Notify
	}
	return cfg.Validate()
}

func openArchive(ctx context.Context, c config.ArchiveConfig) (artifact.Archive, error) {
	switch c.Driver {
	case config.ArchivePostgres:
		s, err := store.New(ctx, c.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ArchiveRedis:
		s, err := store.NewRedisStore(ctx, c.URL, c.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

// newClient builds the backend client from the resolved configuration.
func newClient() *client.Client {
	return client.New(Cfg.Backend.URL,
		client.WithTimeout(Cfg.Backend.Timeout),
		client.WithLogger(utils.Logger.Named("client")),
	)
}

// hintFor suggests a next step for the errors users run into most.
func hintFor(err error) string {
	var netErr *client.NetworkError
	var remote *client.RemoteError
	var streamErr *stream.StreamError
	switch {
	case errors.Is(err, pipeline.ErrPrecondition):
		if Cfg != nil && Cfg.Archive.Driver == config.ArchiveNone {
			return "Earlier pipeline stages are not kept between commands without an archive. Use 'depthbrush run', or pass --archive postgres|redis."
		}
		return "Run the earlier stages first: save, then diffuse, then focus."
	case errors.As(err, &netErr):
		return "Is the backend reachable? Start a local one with 'depthbrush stub' or point --backend at it."
	case errors.As(err, &remote), errors.As(err, &streamErr):
		return "The backend rejected the job; its message is shown above."
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return "Wait for the running diffusion job to finish."
	}
	return ""
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if cmd, err := rootCmd.ExecuteContextC(ctx); err != nil {
		utils.ShowError(os.Stderr, cmd.CommandPath()+" failed", err, hintFor(err))
		utils.Logger.Debug("command failed", zap.String("command", cmd.Name()), zap.Error(err))
		utils.Sync()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.ConfigPath, "config", "", "Path to a YAML config file (default: ./depthbrush.yaml if present)")
	pf.StringVar(&globals.BackendURL, "backend", "", "Depth backend API root (default: http://127.0.0.1:5000/api)")
	pf.StringVar(&globals.Archive, "archive", "", "Artifact archive: none, postgres or redis")
	pf.StringVar(&globals.ArchiveURL, "archive-url", "", "Archive connection string")
	pf.StringVar(&globals.LogMode, "log-mode", "", "Log mode: debug, release or quiet")
	pf.BoolVar(&globals.Notify, "notify", false, "Send a desktop notification when diffusion or focus finishes")
}
