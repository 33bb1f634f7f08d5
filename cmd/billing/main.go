// Package main запускает HTTP-сервер кассы.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pos-billing/internal/config"
	"github.com/mmeshcher/pos-billing/internal/docstore"
	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/handler"
	"github.com/mmeshcher/pos-billing/internal/middleware"
	"github.com/mmeshcher/pos-billing/internal/printer"
	"github.com/mmeshcher/pos-billing/internal/receipt"
	"github.com/mmeshcher/pos-billing/internal/render"
	"github.com/mmeshcher/pos-billing/internal/repository"
	"github.com/mmeshcher/pos-billing/internal/service"
)

func openGateway(ctx context.Context, cfg *config.Config) (service.Gateway, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return repository.NewSQLiteRepository(ctx, cfg.DatabaseURI)
	case config.DriverDocstore:
		return docstore.NewClient(docstore.Config{
			BaseURL:    cfg.DocstoreURL,
			ProjectID:  cfg.DocstoreProjectID,
			APIKey:     cfg.DocstoreAPIKey,
			Collection: cfg.ReceiptsCollection,
		})
	default:
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := openGateway(ctx, cfg)
	if err != nil {
		sugar.Fatalw("receipt store initialization error", "driver", cfg.StoreDriver, "error", err.Error())
	}

	p, err := printer.New(printer.Config{
		Type:     cfg.PrinterType,
		Address:  cfg.PrinterAddress,
		SpoolDir: cfg.PrinterSpoolDir,
		Command:  cfg.PrinterCommand,
	})
	if err != nil {
		gateway.Close()
		sugar.Fatalw("printer initialization error", "type", cfg.PrinterType, "error", err.Error())
	}

	formatter := format.New(cfg.CurrencySymbol, cfg.Location())
	renderer := render.NewRenderer(render.Header{
		StoreName: cfg.StoreName,
		Title:     cfg.ReceiptTitle,
		Footer:    cfg.ReceiptFooter,
	}, formatter)

	svc := service.NewService(gateway, p, renderer, receipt.NewBuilder(cfg.ReceiptPrefix, nil), formatter, logger)
	defer svc.Close()

	gate, err := middleware.NewSessionGate(cfg.Username, cfg.Password, cfg.SessionSecret)
	if err != nil {
		sugar.Fatalw("session gate initialization error", "error", err.Error())
	}

	h := handler.NewHandler(svc, logger, gate, handler.Settings{
		Formatter:   formatter,
		Currency:    cfg.Currency,
		PrinterType: cfg.PrinterType,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting billing server",
			"addr", cfg.RunAddress,
			"store", cfg.StoreDriver,
			"printer", cfg.PrinterType,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
