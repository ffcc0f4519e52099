package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jacklund/voynich"
	"github.com/jacklund/voynich/identity"
	"github.com/jacklund/voynich/metrics"
	"github.com/jacklund/voynich/telemetry"
	"github.com/jacklund/voynich/transport"
	"github.com/jacklund/voynich/wire"
)

var (
	flagListen     string
	flagDialAddr   string
	flagRemoteID   string
	flagAdminAddr  string
	flagLogLevel   string
	flagIdentityID string
)

var rootCmd = &cobra.Command{
	Use:   "voynich-chat",
	Short: "A demo peer-to-peer secure chat client built on the voynich protocol library",
}

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "Dial a remote peer over TCP and start an authenticated chat session",
	RunE:  runDial,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept a single incoming connection and start an authenticated chat session",
	RunE:  runListen,
}

func init() {
	dialCmd.Flags().StringVar(&flagDialAddr, "addr", "", "TCP address to dial, e.g. 127.0.0.1:9443")
	dialCmd.Flags().StringVar(&flagRemoteID, "peer-id", "", "onion id the dialed peer must present")
	_ = dialCmd.MarkFlagRequired("addr")
	_ = dialCmd.MarkFlagRequired("peer-id")

	listenCmd.Flags().StringVar(&flagListen, "addr", ":9443", "TCP address to listen on")

	rootCmd.PersistentFlags().StringVar(&flagAdminAddr, "admin-addr", "", "optional local admin HTTP address for /healthz and /metrics")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "zerolog level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagIdentityID, "identity-seed", "", "hex-encoded ed25519 seed for a stable identity (random if empty)")

	rootCmd.AddCommand(dialCmd, listenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func zerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func loadOrGenerateIdentity() (*identity.LongTermKeypair, error) {
	if flagIdentityID == "" {
		return identity.GenerateLongTermKeypair()
	}
	seed, err := hex.DecodeString(flagIdentityID)
	if err != nil {
		return nil, fmt.Errorf("decode --identity-seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("--identity-seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return identity.NewLongTermKeypairFromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// serveAdmin starts the optional local health/metrics mux in the
// background and returns a shutdown func.
func serveAdmin(reg *prometheus.Registry) func(context.Context) error {
	if flagAdminAddr == "" {
		return func(context.Context) error { return nil }
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: flagAdminAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Println("admin http:", err)
		}
	}()
	return srv.Shutdown
}

func runDial(cmd *cobra.Command, args []string) error {
	logger := telemetry.New(os.Stderr, zerologLevel())
	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)
	shutdownAdmin := serveAdmin(promReg)
	defer shutdownAdmin(context.Background())

	local, err := loadOrGenerateIdentity()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "local onion id: %s\n", local.ID())

	conn, err := transport.DialTCP("tcp", flagDialAddr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := voynich.Connect(ctx, conn, flagRemoteID, local, voynich.DefaultConfig(), logger, reg)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	fmt.Fprintf(os.Stderr, "connected to %s\n", sess.PeerIdentity().ID)

	return runChatLoop(ctx, sess)
}

func runListen(cmd *cobra.Command, args []string) error {
	logger := telemetry.New(os.Stderr, zerologLevel())
	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)
	shutdownAdmin := serveAdmin(promReg)
	defer shutdownAdmin(context.Background())

	local, err := loadOrGenerateIdentity()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "local onion id: %s\n", local.ID())
	fmt.Fprintf(os.Stderr, "listening on %s\n", flagListen)

	ln, err := net.Listen("tcp", flagListen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	raw, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	conn := transport.NewTCPConn(raw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := voynich.Accept(ctx, conn, local, voynich.DefaultConfig(), logger, reg)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	fmt.Fprintf(os.Stderr, "accepted connection from %s\n", sess.PeerIdentity().ID)

	return runChatLoop(ctx, sess)
}

// runChatLoop reads lines from stdin and sends them as chat messages
// while printing whatever the peer sends, until the peer says goodbye
// or the process receives an interrupt.
func runChatLoop(ctx context.Context, sess *voynich.Session) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for {
			msg, err := sess.Receive()
			if err != nil {
				fmt.Fprintf(os.Stderr, "session ended: %v\n", err)
				return
			}
			fmt.Printf("%s: %s\n", msg.Sender, msg.Body)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if err := sess.Send(wire.ChatMessage{
				Recipient: sess.PeerIdentity().ID,
				Timestamp: time.Now().Unix(),
				Body:      line,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				return
			}
		}
	}()

	select {
	case <-sig:
	case <-recvDone:
	}
	return sess.Close()
}
