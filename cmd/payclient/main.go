// Command payclient exercises the payment flow from the payer's side:
// fetch a gated file (paying its 402 challenge) or pay a payment link,
// using a simulated wallet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"linkpay/internal/client"
	"linkpay/internal/config"
	"linkpay/internal/logging"
	"linkpay/internal/wallet"
)

const defaultPayer = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	configPath := flag.String("config", "", "YAML config file path (wallet.payer_address supplies the default payer)")
	fileID := flag.String("file", "", "File ID to fetch (pays the challenge if required)")
	linkSlug := flag.String("link", "", "Payment link slug to pay")
	payer := flag.String("payer", "", "Payer wallet address (overrides config)")
	gasless := flag.Bool("gasless", false, "Pay through the paymaster (gasless user operation)")
	outPath := flag.String("o", "", "Write fetched file content to this path (default stdout)")
	flag.Parse()

	if (*fileID == "") == (*linkSlug == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -link is required")
		flag.Usage()
		os.Exit(2)
	}

	payerAddress := *payer
	if payerAddress == "" && *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logging.Internal.Fatalf("failed to load config: %v", err)
		}
		payerAddress = cfg.Wallet.PayerAddress
	}
	if payerAddress == "" {
		payerAddress = defaultPayer
	}

	var w wallet.Broadcaster
	var err error
	if *gasless {
		w, err = wallet.NewPaymasterWallet(payerAddress)
	} else {
		w, err = wallet.NewSimulatedWallet(payerAddress)
	}
	if err != nil {
		logging.Internal.Fatalf("failed to create wallet: %v", err)
	}

	c := client.New(nil, w, *server)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *linkSlug != "" {
		payLink(ctx, c, *linkSlug)
		return
	}
	fetchFile(ctx, c, *fileID, *outPath)
}

func payLink(ctx context.Context, c *client.Client, slug string) {
	payment, err := c.PayLink(ctx, slug)
	if err != nil {
		logging.Internal.Fatalf("failed to pay link %q: %v", slug, err)
	}

	logging.Internal.Printf("paid link %q: %s USDC (%s)", slug, payment.Amount, payment.Status)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payment); err != nil {
		logging.Internal.Fatalf("failed to print payment: %v", err)
	}
}

func fetchFile(ctx context.Context, c *client.Client, fileID, outPath string) {
	result, err := c.FetchFile(ctx, fileID)
	if err != nil {
		logging.Internal.Fatalf("failed to fetch file %q: %v", fileID, err)
	}
	if result.Paid {
		logging.Internal.Printf("paid for %q: %s", result.File.Name, result.TxID.ID())
	} else {
		logging.Internal.Printf("no payment required for %q", result.File.Name)
	}

	rc, err := c.DownloadContent(ctx, result.File)
	if err != nil {
		logging.Internal.Fatalf("failed to download content: %v", err)
	}
	defer rc.Close()

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			logging.Internal.Fatalf("failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	n, err := io.Copy(out, rc)
	if err != nil {
		logging.Internal.Fatalf("failed to write content: %v", err)
	}
	if outPath != "" {
		logging.Internal.Printf("wrote %d bytes to %s", n, outPath)
	}
}
