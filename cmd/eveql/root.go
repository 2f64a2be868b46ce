package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rpattn/eveql/internal/config"
	"github.com/rpattn/eveql/internal/db"
	"github.com/rpattn/eveql/internal/logging"
	"github.com/rpattn/eveql/internal/query"
	"github.com/rpattn/eveql/internal/repository"
)

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "eveql",
		Short:         "Query and seed REST resources stored in PostgreSQL",
		Long:          `eveql translates filter expressions such as 'firstname == "Barack" and born < datetime(1970, 1, 1)' into SQL and runs them against mapped tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = opts.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = opts.logFormat
			}
			if err := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", ".", "config.yaml file or the directory holding it")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format (console or json)")

	root.AddCommand(
		newExplainCmd(opts),
		newFindCmd(opts),
		newValidateCmd(opts),
		newSeedCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// newService builds a query service storing documents through repo, with
// every known resource registered.
func newService(cfg config.Config, repo repository.DocumentRepository) (*query.Service, error) {
	svc, err := query.NewService(repo, cfg.Query)
	if err != nil {
		return nil, err
	}

	people := query.PeopleResource()
	for name := range cfg.Resources {
		if name != people.Name {
			log.Warn().Str("resource", name).Msg("Ignoring schema of unknown resource")
		}
	}
	if overrides, ok := cfg.Resources[people.Name]; ok {
		people = people.WithSchema(overrides)
	}
	if err := svc.Register(people); err != nil {
		return nil, err
	}
	return svc, nil
}

// connect opens the database and returns a service backed by it. The
// caller closes the connection.
func connect(ctx context.Context, cfg config.Config) (*query.Service, *db.Connection, error) {
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	svc, err := newService(cfg, repository.NewDocumentRepository(conn.Pool))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return svc, conn, nil
}

func resourceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "people"
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
