package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/storage"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/classifier"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/service"
)

// app is filled in by the root command before any subcommand runs.
type app struct {
	provider *storage.Provider
	store    *storage.SQLAdapter
	catalog  *service.CatalogService
	orders   *service.OrderService
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", classifier.Message(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		a          app
	)

	root := &cobra.Command{
		Use:           "farmacia",
		Short:         "Administración del inventario de la farmacia",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			p, err := storage.Open(cfg.Store)
			if err != nil {
				return err
			}
			store, err := storage.NewSQLAdapter(p, cfg.Store.SuggestRoutine)
			if err != nil {
				p.Close()
				return err
			}

			logger := log.NewNopLogger()
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
			}

			a = app{
				provider: p,
				store:    store,
				catalog:  service.NewCatalogService(store, store, logger),
				orders:   service.NewOrderService(store, nil, logger),
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.provider != nil {
				return a.provider.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("FARMACIA_CONFIG"), "archivo de configuración")
	root.PersistentFlags().BoolP("verbose", "v", false, "registrar operaciones en stderr")

	root.AddCommand(
		newMigrateCmd(&a),
		newPingCmd(&a),
		newUserCmd(&a),
		newSupplierCmd(&a),
		newProductCmd(&a),
		newSequenceCmd(&a),
		newPurchaseCmd(&a),
		newSaleCmd(&a),
	)
	return root
}
