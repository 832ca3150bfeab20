package main

import (
	"errors"
	"io/fs"

	"github.com/MrTornister/Work-Flow-app/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries state shared by subcommands after PersistentPreRunE.
type app struct {
	envFile string
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "authctl",
		Short: "Operate the Work-Flow auth core",
		Long: `authctl hashes and verifies passwords, issues and inspects bearer tokens,
serves the demo HTTP API and load-tests the login path.

Settings come from the environment, optionally seeded from a .env file:
JWT_SECRET, ACCESS_TOKEN_TTL, LOCKOUT_MAX_ATTEMPTS, LOCKOUT_WINDOW,
RATE_LIMIT_RPM, LOGIN_RATE_LIMIT_RPM, SESSION_IDLE_TIMEOUT, PASSWORD_HASHER,
RESET_TOKEN_TTL, RESET_RETURN_TOKEN, DATABASE_URL, DATABASE_DRIVER,
REDIS_ADDR, LOG_LEVEL, LOG_DEV, LOG_FILE.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnv(a.envFile); err != nil {
				return err
			}
			logger, err := logging.New(logging.ConfigFromEnv())
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		newHashCmd(),
		newVerifyCmd(),
		newTokenCmd(),
		newServeCmd(a),
		newLoadtestCmd(),
	)
	return root
}

// loadEnv loads path into the environment without overriding variables
// already set. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
