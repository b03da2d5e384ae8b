package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/casefile"
	"github.com/endo-report-server/internal/config"
	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
	"github.com/endo-report-server/internal/logging"
)

func renderCmd(configFile *string) *cobra.Command {
	var (
		casePath string
		format   string
		output   string
		polish   bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a referral letter from a case file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configFile, true)
			if err != nil {
				return err
			}
			defer rt.close()

			file, err := casefile.Load(casePath)
			if err != nil {
				return err
			}

			rec := file.Case
			if polish {
				gateway, err := rt.gateway()
				if err != nil {
					return err
				}
				rec, err = gateway.RewriteCase(cmd.Context(), rec)
				if err != nil {
					return fmt.Errorf("notes rewrite failed: %s", domain.PublicMessage(err))
				}
			}

			out, err := renderAs(rt.config.GetConfig().Letterhead, rec, file.Attachments, format)
			if err != nil {
				return err
			}

			return writeOutput(cmd, output, out)
		},
	}

	cmd.Flags().StringVar(&casePath, "case", "", "Case file (YAML or JSON)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, html or body")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&polish, "rewrite", false, "Rewrite the clinical notes before rendering")
	_ = cmd.MarkFlagRequired("case")

	return cmd
}

func renderAs(letterhead domain.LetterheadConfig, rec domain.CaseRecord, att domain.Attachments, format string) (string, error) {
	if format == "body" {
		return letter.Render(rec)
	}

	doc, err := letter.NewComposer(letterhead).Compose(rec, att)
	if err != nil {
		return "", err
	}

	switch format {
	case "text":
		return doc.Text(), nil
	case "html":
		return doc.HTML()
	}
	return "", fmt.Errorf("unsupported format %q", format)
}

func rewriteCmd(configFile *string) *cobra.Command {
	var (
		notes   string
		patient string
	)

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite clinical notes into a formal report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configFile, true)
			if err != nil {
				return err
			}
			defer rt.close()

			if notes == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read notes: %w", err)
				}
				notes = string(data)
			}

			gateway, err := rt.gateway()
			if err != nil {
				return err
			}

			out, err := gateway.Rewrite(cmd.Context(), notes, patient)
			if err != nil {
				return errors.New(domain.PublicMessage(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", `Clinical notes, or "-" to read stdin`)
	cmd.Flags().StringVar(&patient, "patient", "", "Patient name")

	return cmd
}

func auditCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all audit events as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configFile, true)
			if err != nil {
				return err
			}
			defer rt.close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			return rt.store.ExportJSON(cmd.Context(), w)
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded events",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configFile, true)
			if err != nil {
				return err
			}
			defer rt.close()

			n, err := rt.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.AddCommand(exportCmd, countCmd, migrateCmd(configFile))
	return cmd
}

func migrateCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the PostgreSQL audit schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configManager, err := config.NewManager(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg := configManager.GetConfig()
			if !strings.EqualFold(cfg.Audit.Driver, "postgres") {
				return fmt.Errorf("migrations apply to the postgres audit driver, configured driver is %q", cfg.Audit.Driver)
			}

			logCfg := cfg.Logging
			logCfg.Output = "stderr"
			logger, err := logging.New(logCfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			db, err := audit.OpenPostgres(cfg.Audit.PostgresURL)
			if err != nil {
				return err
			}
			runner, err := audit.NewMigrationRunner(db, logger)
			if err != nil {
				db.Close()
				return err
			}
			defer runner.Close()

			switch args[0] {
			case "up":
				return runner.Up()
			case "down":
				return runner.Down()
			case "version":
				version, dirty, err := runner.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			}
			return fmt.Errorf("unknown migrate action %q", args[0])
		},
	}
	return cmd
}

func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
