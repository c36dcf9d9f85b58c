// Command encattr manages the keys and shadow columns of encrypted attributes.
//
//	encattr keys generate users/ssn
//	encattr schema check --models encattr.yaml
//	encattr schema migrate --models encattr.yaml
//	encattr encrypt User ssn 123-45-6789
//	encattr decrypt User ssn <ciphertext> --iv <iv>
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hengadev/encattr"
)

// app carries the configuration resolved before every subcommand runs.
type app struct {
	envFile    string
	modelsPath string
	dsn        string

	cfg    encattr.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "encattr",
		Short:         "Manage keys and shadow columns for encrypted attributes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before reading ENCATTR_* variables")
	root.PersistentFlags().StringVar(&a.modelsPath, "models", "encattr.yaml", "Model definition file")
	root.PersistentFlags().StringVar(&a.dsn, "dsn", "", "Database DSN, overrides "+encattr.EnvDatabaseDSN)

	root.AddCommand(
		newKeysCommand(a),
		newSchemaCommand(a),
		newEncryptCommand(a),
		newDecryptCommand(a),
		newVersionCommand(),
	)
	return root
}

// load reads the env file, the ENCATTR_* configuration and builds the logger.
// A missing env file is only an error when the flag was set explicitly.
func (a *app) load(cmd *cobra.Command) error {
	if err := godotenv.Load(a.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := encattr.LoadConfigFromEnvironment()
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.DatabaseDSN = a.dsn
	}
	a.cfg = cfg

	loggerCfg := cfg.LoggerConfig("cli")
	loggerCfg.Output = cmd.ErrOrStderr()
	logger, err := encattr.NewLogger(loggerCfg)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) loadModels() (*ModelFile, error) {
	return LoadModelFile(a.modelsPath)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), encattr.VersionInfo())
		},
	}
}
