package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade_dash/internal/app"
	"trade_dash/internal/infra"
	"trade_dash/internal/view"

	_ "net/http/pprof" // For pprof profiling
)

const clearScreen = "\033[H\033[2J"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	newIdentity := flag.Bool("new-identity", false, "discard the stored trader id and mint a new one")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	bootstrap.ResetIdentity = *newIdentity
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 2. Debug Server (pprof + metrics)
	if cfg.Debug.Addr != "" {
		startDebugServer(cfg.Debug.Addr)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Session: stream + bootstrap load run concurrently
	session := app.NewSession(app.OptionsFromConfig(cfg, bootstrap.TraderID))
	if err := session.Start(ctx); err != nil {
		slog.Error("Failed to start session", slog.Any("error", err))
		os.Exit(1)
	}
	defer session.Close()
	slog.InfoContext(ctx, "Session started", slog.String("session_id", session.ID), slog.String("trader_id", session.TraderID))

	go func() {
		if err := session.WaitReady(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Dashboard unavailable", slog.Any("error", err))
		}
	}()

	// 5. Operator input
	commands := readCommands(ctx)

	ticker := time.NewTicker(time.Duration(cfg.UI.UpdateIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	var lastVersion uint64
	var lastNotes int
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutting down gracefully...")
			return
		case <-ticker.C:
			snap := session.Snapshot()
			notes := session.Notifications()
			if snap.Version == lastVersion && len(notes) == lastNotes {
				continue
			}
			lastVersion, lastNotes = snap.Version, len(notes)
			fmt.Print(clearScreen + view.Render(snap, notes) + "\n\n> ")
		case line, ok := <-commands:
			if !ok {
				return
			}
			if !handleLine(ctx, session, line) {
				return
			}
		}
	}
}

// handleLine runs one line of operator input. It returns false on quit.
func handleLine(ctx context.Context, session *app.Session, line string) bool {
	cmd, err := app.ParseCommand(line)
	if err != nil {
		fmt.Println(err)
		fmt.Println(app.Usage)
		return true
	}

	switch cmd.Kind {
	case app.CommandQuit:
		return false
	case app.CommandHelp:
		fmt.Println(app.Usage)
	default:
		if session.Execute(ctx, cmd) {
			fmt.Println("ok")
		} else {
			fmt.Println("failed")
		}
	}
	return true
}

func readCommands(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func startDebugServer(addr string) {
	metricsHandler, err := infra.MetricsHandler(infra.GlobalMetrics)
	if err != nil {
		slog.Error("Failed to build metrics handler", slog.Any("error", err))
	} else {
		http.Handle("/metrics", metricsHandler)
	}

	go func() {
		slog.Info("Debug server started", slog.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			slog.Error("Debug server failed", slog.Any("error", err))
		}
	}()
}
