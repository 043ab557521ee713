// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

package telegram

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"time"

	"github.com/adhocore/gronx"
	"github.com/mymmrac/telego"

	"github.com/lumiclaw/lumiclaw/pkg/gateway"
	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/utils"
)

const (
	maxCommandNameLen = 32
	maxCommandDescLen = 30
)

var commandNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// reservedCommands are handled by the adapter itself and never surfaced in
// the registered list.
var reservedCommands = map[string]struct{}{
	"start": {},
}

// CollectCommands computes the platform command list from the registry:
// top-level commands and parentless groups of activated modules, validated,
// deduplicated and sorted. Duplicate names resolve to the last registration.
func CollectCommands(reg *gateway.Registry) []telego.BotCommand {
	if reg == nil {
		return nil
	}

	byName := make(map[string]telego.BotCommand)
	for _, h := range reg.Handlers() {
		if !reg.ModuleActivated(h.Module) {
			continue
		}

		var name, fallbackDesc string
		switch f := h.Filter.(type) {
		case gateway.CommandFilter:
			if len(f.Parents) != 0 {
				continue
			}
			name = f.Name
			fallbackDesc = fmt.Sprintf("command: %s", name)
		case gateway.GroupFilter:
			if f.Parent != "" {
				continue
			}
			name = f.Name
			fallbackDesc = fmt.Sprintf("command group: %s (contains subcommands)", name)
		default:
			continue
		}

		if _, reserved := reservedCommands[name]; reserved {
			continue
		}
		if len(name) > maxCommandNameLen || !commandNameRe.MatchString(name) {
			logger.DebugCF(component, "Skipping invalid command name", map[string]any{
				"name":   name,
				"module": h.Module,
			})
			continue
		}

		desc := h.Description
		if desc == "" {
			desc = fallbackDesc
		}
		byName[name] = telego.BotCommand{
			Command:     name,
			Description: utils.Truncate(desc, maxCommandDescLen),
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]telego.BotCommand, 0, len(names))
	for _, name := range names {
		out = append(out, byName[name])
	}
	return out
}

// fingerprintCommands hashes the sorted (name, description) pairs so an
// unchanged set is recognized across refresh cycles and process restarts.
func fingerprintCommands(cmds []telego.BotCommand) uint64 {
	h := fnv.New64a()
	for _, c := range cmds {
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// SyncCommands reconciles the registered platform commands with the desired
// set. When the fingerprint matches the last successful sync, no remote call
// is made. The fingerprint advances only after both the delete and the set
// succeed, so a failed sync is retried on the next cycle.
func (a *Adapter) SyncCommands(ctx context.Context) error {
	if a.registry == nil {
		return nil
	}
	cmds := CollectCommands(a.registry)

	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	fp := fingerprintCommands(cmds)
	if a.hasCmdFP && fp == a.lastCmdFP {
		logger.DebugC(component, "Command list unchanged, skipping registration")
		return nil
	}
	if len(cmds) == 0 {
		logger.DebugC(component, "No commands to register")
		return nil
	}

	if err := a.api.DeleteMyCommands(ctx, &telego.DeleteMyCommandsParams{}); err != nil {
		logger.WarnCF(component, "Failed to clear registered commands", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("delete commands: %w", err)
	}
	if err := a.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: cmds}); err != nil {
		logger.WarnCF(component, "Failed to register commands", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("set commands: %w", err)
	}

	a.lastCmdFP = fp
	a.hasCmdFP = true
	logger.InfoCF(component, "Registered bot commands", map[string]any{
		"count": len(cmds),
	})
	return nil
}

// refreshCommandsLoop re-syncs the command list on the configured cron
// schedule, picking up module activation changes and late registrations.
func (a *Adapter) refreshCommandsLoop(ctx context.Context) {
	gron := gronx.New()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := gron.IsDue(a.cfg.CommandRefreshCron)
			if err != nil {
				logger.WarnCF(component, "Invalid command refresh cron, stopping refresh", map[string]any{
					"cron":  a.cfg.CommandRefreshCron,
					"error": err.Error(),
				})
				return
			}
			if !due {
				continue
			}
			if err := a.SyncCommands(ctx); err != nil {
				logger.WarnCF(component, "Command refresh failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}
