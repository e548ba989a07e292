package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/storage"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crea las tablas que falten",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "esquema actualizado")
			return nil
		},
	}
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Comprueba la conexión con la base de datos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.catalog.Ping(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "conectado a %s\n", name)
			return nil
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Gestiona los usuarios"}

	var role string
	add := &cobra.Command{
		Use:   "add <usuario> <contraseña>",
		Short: "Crea un usuario activo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.CreateUser(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "usuario %s creado (id %d, rol %s)\n", args[0], id, role)
			return nil
		},
	}
	add.Flags().StringVarP(&role, "role", "r", domain.RoleSeller, "rol del usuario")

	toggle := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <usuario>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.SetUserActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "usuario %s actualizado\n", args[0])
				return nil
			},
		}
	}

	cmd.AddCommand(add, toggle("enable", "Habilita un usuario", true), toggle("disable", "Deshabilita un usuario", false))
	return cmd
}

func newSupplierCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "supplier", Short: "Gestiona los proveedores"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <razón social>",
			Short: "Registra un proveedor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.store.CreateSupplier(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "proveedor %d registrado\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Lista los proveedores",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				suppliers, err := a.catalog.ListSuppliers(cmd.Context())
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "ID", "Razón social")
				for _, s := range suppliers {
					t.AppendRow(table.Row{s.ID, s.Name})
				}
				t.Render()
				return nil
			},
		},
	)
	return cmd
}

func renderProducts(w io.Writer, products []domain.Product) {
	t := newTable(w, "Código", "Descripción", "Precio", "Stock", "Mínimo", "Receta")
	for _, p := range products {
		rx := ""
		if p.RequiresPrescription {
			rx = "sí"
		}
		t.AppendRow(table.Row{p.Code, p.Description, p.Price.StringFixed(2), p.Stock, p.MinStock, rx})
	}
	t.Render()
}

func newProductCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Consulta y edita el catálogo"}

	list := &cobra.Command{
		Use:   "list [filtro]",
		Short: "Lista productos por código o descripción",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			products, err := a.catalog.ListProducts(cmd.Context(), term)
			if err != nil {
				return err
			}
			renderProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}

	var in domain.ProductInput
	var price string
	upsert := &cobra.Command{
		Use:   "upsert <código>",
		Short: "Crea o actualiza un producto",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return &domain.ValidationError{Msg: "precio inválido"}
			}
			in.Code = args[0]
			in.Price = p
			id, err := a.catalog.UpsertProduct(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "producto %s guardado (id %d)\n", in.Code, id)
			return nil
		},
	}
	upsert.Flags().StringVarP(&in.Description, "description", "d", "", "descripción")
	upsert.Flags().StringVarP(&price, "price", "p", "0", "precio de venta")
	upsert.Flags().IntVar(&in.MinStock, "min-stock", 0, "stock mínimo")
	upsert.Flags().BoolVar(&in.RequiresPrescription, "prescription", false, "requiere receta")

	suggest := &cobra.Command{
		Use:   "suggest <término>",
		Short: "Sugerencias de autocompletado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.catalog.SuggestProducts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Código", "Descripción", "Precio", "Stock")
			for _, r := range rows {
				t.AppendRow(table.Row{r.Code, r.Description, r.Price.StringFixed(2), r.Stock})
			}
			t.Render()
			return nil
		},
	}

	lots := &cobra.Command{
		Use:   "lots <código>",
		Short: "Lista los lotes de un producto",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.catalog.ListLots(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Lote", "Vence", "Cantidad")
			for _, l := range rows {
				t.AppendRow(table.Row{l.Label, l.ExpiresOn.Format("2006-01-02"), l.Stock})
			}
			t.Render()
			return nil
		},
	}

	lowStock := &cobra.Command{
		Use:   "low-stock",
		Short: "Productos en o por debajo del stock mínimo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := a.catalog.ListLowStock(cmd.Context())
			if err != nil {
				return err
			}
			renderProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}

	cmd.AddCommand(list, upsert, suggest, lots, lowStock)
	return cmd
}

func newSequenceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next-numbers",
		Short: "Muestra los próximos números de compra y venta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable(cmd.OutOrStdout(), "Documento", "Próximo número")
			for _, s := range []struct {
				name string
				seq  storage.Sequence
			}{
				{"compra", storage.PurchaseSequence},
				{"venta", storage.SaleSequence},
			} {
				number, err := a.store.NextDocumentNumber(cmd.Context(), s.seq)
				if err != nil {
					return err
				}
				t.AppendRow(table.Row{s.name, number})
			}
			t.Render()
			return nil
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Msg: "id inválido"}
	}
	return id, nil
}

func renderLines(w io.Writer, number string, total decimal.Decimal, lines []domain.DocumentLine) {
	t := newTable(w, "Código", "Cantidad", "Precio", "Importe")
	t.SetTitle(number)
	for _, l := range lines {
		amount := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		t.AppendRow(table.Row{l.Code, l.Quantity, l.UnitPrice.StringFixed(2), amount.StringFixed(2)})
	}
	t.AppendFooter(table.Row{"", "", "Total", total.StringFixed(2)})
	t.Render()
}

func newPurchaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "purchase", Short: "Consulta compras"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Muestra una compra y sus ítems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.orders.GetPurchase(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderLines(cmd.OutOrStdout(), p.DocumentNumber, p.Total, p.Lines)
			return nil
		},
	})
	return cmd
}

func newSaleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "sale", Short: "Consulta ventas"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Muestra una venta y sus ítems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.orders.GetSale(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderLines(cmd.OutOrStdout(), s.DocumentNumber, s.Total, s.Lines)
			return nil
		},
	})
	return cmd
}
