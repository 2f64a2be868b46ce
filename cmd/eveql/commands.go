package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rpattn/eveql/internal/db"
	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/export"
	"github.com/rpattn/eveql/internal/ingestion"
	"github.com/rpattn/eveql/internal/query"
)

func addFindFlags(cmd *cobra.Command, req *query.FindRequest) {
	cmd.Flags().StringVarP(&req.Where, "where", "w", "", `filter expression, e.g. 'lastname == "Obama"'`)
	cmd.Flags().StringVarP(&req.Sort, "sort", "s", "", `sort expression, e.g. '[("born", -1)]' or '-born,lastname'`)
	cmd.Flags().IntVar(&req.Page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&req.MaxResults, "max-results", 0, "page size (defaults to query.default_page_size)")
}

func newExplainCmd(opts *options) *cobra.Command {
	req := query.FindRequest{}
	cmd := &cobra.Command{
		Use:   "explain [resource]",
		Short: "Show the filters and SQL a find would run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(opts.cfg, nil)
			if err != nil {
				return err
			}
			explanation, err := svc.Explain(resourceArg(args), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), explanation)
		},
	}
	addFindFlags(cmd, &req)
	return cmd
}

func newFindCmd(opts *options) *cobra.Command {
	req := query.FindRequest{}
	var out string
	cmd := &cobra.Command{
		Use:   "find [resource]",
		Short: "List documents matching a filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, conn, err := connect(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			resource := resourceArg(args)
			result, err := svc.Find(cmd.Context(), resource, req)
			if err != nil {
				return err
			}
			if out == "" {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			table, err := svc.Table(resource)
			if err != nil {
				return err
			}
			return export.WriteFile(out, table, result.Items)
		},
	}
	addFindFlags(cmd, &req)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write results to a .csv or .xlsx file instead of stdout")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "validate [resource]",
		Short: "Validate a JSON document against the resource schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc domain.Document
			if err := json.Unmarshal([]byte(payload), &doc); err != nil {
				return fmt.Errorf("invalid document: %w", err)
			}

			svc, conn, err := connect(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			result, err := svc.Validate(cmd.Context(), resourceArg(args), doc)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&payload, "doc", "d", "{}", "JSON document")
	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	var (
		file         string
		headerRow    int
		createTables bool
	)
	cmd := &cobra.Command{
		Use:   "seed [resource]",
		Short: "Insert documents from a CSV or XLSX file, or the sample people",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, conn, err := connect(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			resource := resourceArg(args)
			table, err := svc.Table(resource)
			if err != nil {
				return err
			}
			if createTables {
				if err := db.CreateAll(ctx, conn.Pool, table); err != nil {
					return err
				}
			}

			if file == "" {
				stored, err := svc.Insert(ctx, resource, domain.Document{
					"firstname": "Barack",
					"lastname":  "Obama",
					"born":      time.Date(1961, 8, 4, 0, 0, 0, 0, time.UTC),
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stored)
			}

			data, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer func() { _ = data.Close() }()

			req := ingestion.Request{Resource: resource, FileName: file, Data: data}
			if cmd.Flags().Changed("header-row") {
				req.HeaderRowIndex = &headerRow
			}
			summary, err := ingestion.NewService(svc).Ingest(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file to ingest")
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "zero based index of the header row")
	cmd.Flags().BoolVar(&createTables, "create-tables", false, "create the resource table if it does not exist")
	return cmd
}

func newMigrateCmd(opts *options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = opts.cfg.Database.Migrations
			}
			log.Info().Str("path", path).Msg("Running migrations")
			return db.RunMigrations(opts.cfg.Database, path)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "migrations directory (defaults to database.migrations)")
	return cmd
}
