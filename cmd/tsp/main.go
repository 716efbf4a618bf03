// Command tsp is a demonstration client: it creates identifiers,
// stores them in a wallet, and sends and receives TSP messages over
// the transport layer.
//
// Usage:
//
//	tsp create --wallet w.sqlite --alias me [--did did:...] --transport tcp://127.0.0.1:1337
//	tsp verify --wallet w.sqlite --alias them <did>
//	tsp send   --wallet w.sqlite --from me --to them [--nc "header"] <message>
//	tsp receive --wallet w.sqlite --vid me
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvsouth/tsp-go/store"
	"github.com/cvsouth/tsp-go/transport"
	"github.com/cvsouth/tsp-go/vid"
	"github.com/cvsouth/tsp-go/wallet"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:], logger)
	case "receive":
		err = runReceive(os.Args[2:], logger)
	case "version":
		fmt.Printf("tsp %s\n", Version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tsp %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tsp <create|verify|send|receive|version> [flags]")
}

// loadWallet opens the wallet and restores it into a fresh store.
func loadWallet(path, passphrase string) (*wallet.Wallet, *store.Store, error) {
	w, err := wallet.Open(path, passphrase)
	if err != nil {
		return nil, nil, err
	}
	s := store.New()
	if err := w.Load(s); err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	return w, s, nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	walletPath := fs.String("wallet", "tsp-wallet.sqlite", "wallet database path")
	passphrase := fs.String("passphrase", "", "wallet passphrase")
	alias := fs.String("alias", "", "alias for the new identifier")
	did := fs.String("did", "", "identifier; empty generates a did:peer")
	transportURL := fs.String("transport", "tcp://127.0.0.1:1337", "endpoint the identifier receives on")
	_ = fs.Parse(args)

	endpoint, err := parseTransport(*transportURL)
	if err != nil {
		return err
	}

	var owned *vid.OwnedVid
	if *did == "" {
		owned, err = vid.NewPeer(endpoint)
	} else {
		owned, err = vid.Bind(*did, endpoint)
	}
	if err != nil {
		return err
	}

	w, s, err := loadWallet(*walletPath, *passphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.AddPrivateVid(owned, *alias); err != nil {
		return err
	}
	if err := w.Persist(s); err != nil {
		return err
	}
	fmt.Println(owned.Identifier())
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	walletPath := fs.String("wallet", "tsp-wallet.sqlite", "wallet database path")
	passphrase := fs.String("passphrase", "", "wallet passphrase")
	alias := fs.String("alias", "", "alias for the verified identifier")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one identifier argument")
	}

	verified, err := vid.VerifyOffline(fs.Arg(0))
	if err != nil {
		return err
	}

	w, s, err := loadWallet(*walletPath, *passphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.AddVerifiedVid(verified, *alias); err != nil {
		return err
	}
	if err := w.Persist(s); err != nil {
		return err
	}
	fmt.Printf("verified %s (%s)\n", verified.Identifier(), verified.Endpoint())
	return nil
}

func runSend(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletPath := fs.String("wallet", "tsp-wallet.sqlite", "wallet database path")
	passphrase := fs.String("passphrase", "", "wallet passphrase")
	from := fs.String("from", "", "sender identifier or alias")
	to := fs.String("to", "", "receiver identifier or alias")
	nonConfidential := fs.String("nc", "", "non-confidential header data")
	_ = fs.Parse(args)
	if fs.NArg() != 1 || *from == "" || *to == "" {
		return fmt.Errorf("expected --from, --to and exactly one message argument")
	}

	w, s, err := loadWallet(*walletPath, *passphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	sender, err := s.Resolve(*from)
	if err != nil {
		return err
	}
	receiver, err := s.Resolve(*to)
	if err != nil {
		return err
	}

	var nc []byte
	if *nonConfidential != "" {
		nc = []byte(*nonConfidential)
	}
	endpoint, message, err := s.SealMessage(sender, receiver, nc, []byte(fs.Arg(0)))
	if err != nil {
		return err
	}

	tr := transport.New(transport.Config{
		UseLocalCertificate: s.Config().UseLocalCertificate,
		RetryPolicy:         s.Config().RetryPolicy,
	}, logger)
	if err := tr.Deliver(context.Background(), endpoint, message); err != nil {
		if errors.Is(err, transport.ErrUnsupportedScheme) {
			return err
		}
		// The message is queued; one flush pass retries with backoff.
		return tr.Flush(context.Background())
	}
	logger.Info("sent", "to", receiver, "endpoint", endpoint.String(), "bytes", len(message))
	return nil
}

func runReceive(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	walletPath := fs.String("wallet", "tsp-wallet.sqlite", "wallet database path")
	passphrase := fs.String("passphrase", "", "wallet passphrase")
	name := fs.String("vid", "", "identifier or alias to receive for")
	_ = fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("expected --vid")
	}

	w, s, err := loadWallet(*walletPath, *passphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	id, err := s.Resolve(*name)
	if err != nil {
		return err
	}
	if !s.HasPrivateVid(id) {
		return fmt.Errorf("no private key material for %s", id)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := transport.New(transport.Config{
		UseLocalCertificate: s.Config().UseLocalCertificate,
		RetryPolicy:         s.Config().RetryPolicy,
	}, logger)

	endpoint, err := endpointFor(s, id)
	if err != nil {
		return err
	}
	messages, err := tr.Receive(ctx, endpoint)
	if err != nil {
		return err
	}
	logger.Info("listening", "vid", id, "endpoint", endpoint.String())

	for message := range messages {
		received, err := s.OpenMessage(message)
		if err != nil {
			logger.Warn("rejected message", "error", err)
			continue
		}
		printReceived(received)
	}
	return nil
}

func printReceived(received store.ReceivedMessage) {
	switch m := received.(type) {
	case store.ReceivedGeneric:
		fmt.Printf("%s: %s\n", m.Sender, m.Message)
		if len(m.NonConfidential) > 0 {
			fmt.Printf("  nc: %s\n", m.NonConfidential)
		}
	case store.RequestRelationship:
		fmt.Printf("%s requests a relationship (thread %x)\n", m.Sender, m.ThreadID[:8])
	case store.AcceptRelationship:
		fmt.Printf("%s accepted the relationship\n", m.Sender)
	case store.CancelRelationship:
		fmt.Printf("%s cancelled the relationship\n", m.Sender)
	case store.ForwardRequest:
		fmt.Printf("forward request towards %s (%d hops left)\n", m.NextHop, len(m.Route))
	}
}

func endpointFor(s *store.Store, id string) (*url.URL, error) {
	v, err := s.Vid(id)
	if err != nil {
		return nil, err
	}
	return v.Endpoint(), nil
}

func parseTransport(raw string) (*url.URL, error) {
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transport %q: %w", raw, err)
	}
	if !vid.TransportScheme(endpoint.Scheme) {
		return nil, fmt.Errorf("unrecognised transport scheme %q", endpoint.Scheme)
	}
	return endpoint, nil
}
