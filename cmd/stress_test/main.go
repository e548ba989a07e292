package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/handler"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

const (
	grpcAddr      = "localhost:50051"
	initialStock  = 20
	totalRequests = 50
)

// Fires concurrent single-unit sales at a running server and checks that stock
// never goes negative. Sales that lose the document number race are counted
// separately from those rejected for lack of stock.
func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	ctx := context.Background()

	conn, err := grpc.NewClient(envOr("STRESS_GRPC_ADDR", grpcAddr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		level.Error(logger).Log("msg", "failed to dial", "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	client := handler.NewInventoryClient(conn)

	login, err := client.Login(ctx, &handler.LoginRequest{
		Username: envOr("STRESS_USER", "admin"),
		Password: envOr("STRESS_PASSWORD", "admin"),
	})
	if err != nil || !login.Success {
		level.Error(logger).Log("msg", "login failed", "err", err, "reply", fmt.Sprint(login))
		os.Exit(1)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+login.Token)

	// Stock a fresh product so reruns do not interfere
	code := fmt.Sprintf("STRESS-%d", time.Now().Unix())
	reply, err := client.CreatePurchase(ctx, &handler.PurchaseRequest{
		SupplierID: 1,
		Lines: []handler.PurchaseLineInput{
			{Code: code, Description: "Stress " + code, Quantity: initialStock, UnitPrice: decimal.NewFromInt(1)},
		},
	})
	if err != nil || !reply.Success {
		level.Error(logger).Log("msg", "failed to stock product", "err", err, "reply", fmt.Sprint(reply))
		os.Exit(1)
	}

	var successCount, stockoutCount, collisionCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			r, err := client.CreateSale(ctx, &handler.SaleRequest{
				RequestID: uuid.NewString(),
				Lines:     []domain.SaleLine{{Code: code, Quantity: 1, UnitPrice: decimal.NewFromInt(2)}},
			})
			switch {
			case err != nil:
				otherCount.Add(1)
			case r.Success:
				successCount.Add(1)
			case strings.HasPrefix(r.Message, "stock insuficiente"):
				stockoutCount.Add(1)
			case strings.HasPrefix(r.Message, "Dato duplicado"):
				collisionCount.Add(1)
			default:
				otherCount.Add(1)
				level.Warn(logger).Log("msg", "sale failed", "n", n, "reply", r.Message)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final := -1
	items, err := client.SuggestProducts(ctx, &handler.SuggestRequest{Term: code})
	if err == nil && len(items.Items) == 1 {
		final = items.Items[0].Stock
	}

	success := int(successCount.Load())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("STRESS TEST RESULTS")
	t.AppendRows([]table.Row{
		{"Product", code},
		{"Initial Stock", initialStock},
		{"Total Requests", totalRequests},
		{"Successful", success},
		{"Out of stock", stockoutCount.Load()},
		{"Number collisions", collisionCount.Load()},
		{"Other failures", otherCount.Load()},
		{"Final Stock", final},
		{"Duration", elapsed},
	})
	t.Render()

	// Assertions
	if success > initialStock {
		fmt.Printf("FAIL: %d sales succeeded for %d units\n", success, initialStock)
	} else {
		fmt.Printf("PASS: %d sales succeeded, stock never oversold\n", success)
	}
	if final == initialStock-success {
		fmt.Printf("PASS: final stock %d matches successful sales\n", final)
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", initialStock-success, final)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
