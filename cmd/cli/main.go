package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logging"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store ports.MappingStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "shortlink",
		Short:        "Administer short link mappings",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
				a.cfg.StoreBackend = backend
			}
			a.log = logging.New(a.cfg.LogLevel, a.cfg.LogFormat)

			store, err := repository.Open(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			a.store = store
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
	}
	root.PersistentFlags().String("backend", "", "store backend (overrides STORE_BACKEND)")

	root.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write every mapping to stdout as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return doExport(cmd.Context(), a.store, cmd.OutOrStdout())
			},
		},
		newImportCmd(a),
		&cobra.Command{
			Use:   "stats <short_code>",
			Short: "Show a mapping, active or not",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a.service().Stats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if stats == nil {
					return fmt.Errorf("short code %q not found", args[0])
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			},
		},
		&cobra.Command{
			Use:   "deactivate <short_code>",
			Short: "Stop a short code from resolving; its record is kept",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := a.service().Deactivate(cmd.Context(), args[0])
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("short code %q not found", args[0])
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				// Opening the store already migrated it.
				a.log.Info("migrations up to date")
				return nil
			},
		},
	)
	return root
}

func newImportCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load mappings from a JSON export, skipping codes that exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			var mappings []domain.Mapping
			if err := json.NewDecoder(f).Decode(&mappings); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}
			n, err := doImport(cmd.Context(), a.store, a.log, mappings)
			a.log.WithField("count", n).Info("import finished")
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) service() *services.LinkService {
	return services.NewLinkService(a.store, services.Options{
		CodeLength: a.cfg.CodeLength,
		MaxRetries: a.cfg.MaxRetries,
	}, a.log)
}
