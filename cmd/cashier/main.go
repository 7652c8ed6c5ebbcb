// Command cashier charges a card from the terminal: it queues the charge on the
// WirePOS API, hands it to the terminal agent and follows it until an outcome.
//
// Usage: cashier "TYPE|DEVICE|AMOUNT|INVOICE"
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pos-backoffice/wirepos/internal/cashier"
	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/logger"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, `usage: cashier "TYPE|DEVICE|AMOUNT|INVOICE"`)
		os.Exit(2)
	}

	cfg, err := config.LoadCashierConfig("cashier")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(cfg.LogLevel)}))

	var launcher cashier.Launcher
	if cfg.TerminalURL != "" {
		launcher = cashier.NewHTTPLauncher(cfg.TerminalURL, cfg.RequestTimeout)
	}

	hook := cashier.NewHook(
		cashier.NewClient(cfg.APIURL, cfg.RequestTimeout),
		launcher,
		log,
		cashier.WithPollInterval(cfg.PollInterval),
		cashier.WithTimeout(cfg.PollTimeout),
		cashier.WithLaunchTimeout(cfg.RequestTimeout),
		cashier.WithObserver(func(s cashier.State) { fmt.Printf("-> %s\n", s) }),
	)

	// Ctrl-C stops local polling only; the charge may still complete on the terminal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range quit {
			if !hook.Cancel() {
				os.Exit(130)
			}
		}
	}()

	ctx := context.Background()
	receipt, err := hook.Pay(ctx, cashier.ChargeParams{Command: "charge", Params: os.Args[1]})
	input := bufio.NewReader(os.Stdin)

	for {
		if err == nil {
			fmt.Printf("Charge %s queued on the terminal, waiting for the card...\n", receipt.TransactionID)
		}

		state, waitErr := hook.Wait(ctx)
		report(hook, state, waitErr)
		if state == cashier.StateSuccess {
			return
		}

		fmt.Print("Retry? [y/N] ")
		answer, _ := input.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			os.Exit(1)
		}
		receipt, err = hook.Retry(ctx)
		if errors.Is(err, cashier.ErrNothingToRetry) {
			receipt, err = hook.Pay(ctx, cashier.ChargeParams{Command: "charge", Params: os.Args[1]})
		}
	}
}

func report(hook *cashier.Hook, state cashier.State, err error) {
	switch state {
	case cashier.StateSuccess:
		result := hook.Result()
		fmt.Printf("Approved: %t\n", result.Approved())
		printField("Auth code", result.AuthCode)
		printField("Card", result.CardLast4)
		printField("Brand", result.CardBrand)
		printField("Message", result.Message)
		printField("Gateway invoice", result.GatewayInvoiceID)
	case cashier.StateCancelled:
		fmt.Println("Polling cancelled. The terminal may still complete the charge; check its status before charging again.")
	default:
		fmt.Printf("Charge %s: %v\n", state, err)
	}
}

func printField(label string, value *string) {
	if value != nil {
		fmt.Printf("  %s: %s\n", label, *value)
	}
}
