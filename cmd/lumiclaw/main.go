// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/lumiclaw/lumiclaw/pkg/bus"
	"github.com/lumiclaw/lumiclaw/pkg/config"
	"github.com/lumiclaw/lumiclaw/pkg/gateway"
	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/message"
	"github.com/lumiclaw/lumiclaw/pkg/telegram"
)

var (
	version   = "dev"
	gitCommit string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runCmd()
	case "version", "--version", "-v":
		fmt.Printf("lumiclaw %s\n  Go: %s\n", formatVersion(), runtime.Version())
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("lumiclaw - Telegram message adaptation engine v%s\n\n", version)
	fmt.Println("Usage: lumiclaw <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run         Start the adapter (default)")
	fmt.Println("  version     Show version information")
	fmt.Println("  help        Show this help message")
}

func runCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	if cfg.Telegram.Token == "" {
		fmt.Println("No Telegram token configured. Set telegram.token in the config file or LUMICLAW_TELEGRAM_TOKEN.")
		os.Exit(1)
	}

	broker := bus.NewMessageBus()
	registry := gateway.NewRegistry()
	registerBuiltins(registry)

	adapter, err := telegram.New(cfg.Telegram, broker, registry, nil)
	if err != nil {
		fmt.Printf("Error creating adapter: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := adapter.Start(ctx); err != nil {
		fmt.Printf("Error starting adapter: %v\n", err)
		os.Exit(1)
	}

	gw := gateway.NewGateway(broker, registry)
	go func() {
		_ = gw.Run(ctx)
	}()

	logger.InfoC("main", "LumiClaw is running, press Ctrl+C to stop")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adapter.Stop(shutdownCtx); err != nil {
		logger.WarnCF("main", "Shutdown incomplete", map[string]any{"error": err.Error()})
	}
	broker.Close()
}

// registerBuiltins installs the handlers every deployment gets. Host
// applications register their own on top of these.
func registerBuiltins(reg *gateway.Registry) {
	reg.Register(gateway.Handler{
		Module:      "core",
		Filter:      gateway.CommandFilter{Name: "ping"},
		Description: "check that the bot is alive",
		Fn: func(_ context.Context, _ *message.Message) (message.Chain, error) {
			return message.Chain{message.Plain{Text: "pong"}}, nil
		},
	})
	reg.Register(gateway.Handler{
		Module:      "core",
		Filter:      gateway.CommandFilter{Name: "help"},
		Description: "list available commands",
		Fn: func(_ context.Context, _ *message.Message) (message.Chain, error) {
			lines := make([]string, 0, len(reg.Handlers()))
			for _, h := range reg.Handlers() {
				cf, ok := h.Filter.(gateway.CommandFilter)
				if !ok || len(cf.Parents) != 0 || !reg.ModuleActivated(h.Module) {
					continue
				}
				lines = append(lines, fmt.Sprintf("/%s - %s", cf.Name, h.Description))
			}
			sort.Strings(lines)
			return message.Chain{message.Plain{Text: strings.Join(lines, "\n")}}, nil
		},
	})
}

func getConfigPath() string {
	if p := os.Getenv("LUMICLAW_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lumiclaw", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}
