package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/cybershop/internal/payment"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var paymentSimAddr string

// paymentSimCmd runs a local stand-in for the payment gateway that approves
// most charges and declines the rest with a random reason.
var paymentSimCmd = &cobra.Command{
	Use:   "payment-sim",
	Short: "Run the payment gateway simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              paymentSimAddr,
			Handler:           payment.NewSimulator(payment.RandomOutcome{}, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("payment simulator listening", zap.String("addr", paymentSimAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	paymentSimCmd.Flags().StringVar(&paymentSimAddr, "addr", ":8090", "listen address")
}
