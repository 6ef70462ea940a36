package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"blogapi/app/auth"
	"blogapi/config"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// Version is set at build time with -ldflags "-X blogapi/service.Version=...".
var Version = "dev"

var configPath string

// NewRootCommand returns the blogapi command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "blogapi",
		Short:         "A small JSON blog API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML, TOML or JSON)")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newHashPasswordCommand(),
		newBackupCommand(),
		newRestoreCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

const addrFlag = "addr"

// Flag maps are built per command tree; a cobraflags flag stays bound to
// the first flag set it was read from.
func newServeCommand() *cobra.Command {
	serveFlags := map[string]cobraflags.Flag{
		addrFlag: &cobraflags.StringFlag{
			Name:  addrFlag,
			Value: "",
			Usage: "Listen address, overrides http.addr",
		},
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveCommand(cmd, serveFlags[addrFlag].GetString())
		},
	}
	cobraflags.RegisterMap(cmd, serveFlags)
	return cmd
}

func serveCommand(cmd *cobra.Command, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close post store")
		}
	}()

	l, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.Addr, err)
	}
	return app.Run(ctx, l)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the post store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			repo, err := openRepository(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.Storage.Driver)
			return nil
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.password_hash",
		Long: `Print a bcrypt hash for auth.password_hash.

The password is read from the first argument or, if absent, from the first
line of standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogapi version %s\n", Version)
		},
	}
}
