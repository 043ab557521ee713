// LumiClaw - Telegram message adaptation engine
// License: MIT
//
// Copyright (c) 2026 LumiClaw contributors

// Package gateway hosts the command handlers a bot exposes: a registry that
// carries handler metadata (module, filter, description) and a dispatch loop
// that matches inbound messages against registered commands.
package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/lumiclaw/lumiclaw/pkg/bus"
	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/message"
)

const component = "gateway"

// Filter describes how a handler is addressed. The concrete types form a
// closed set.
type Filter interface {
	isFilter()
}

// CommandFilter matches a slash command by name. Parents lists the enclosing
// group names; a command with parents is only reachable through its group and
// is not surfaced in the platform command list.
type CommandFilter struct {
	Name    string
	Parents []string
}

func (CommandFilter) isFilter() {}

// GroupFilter names a command group. A parentless group is surfaced in the
// platform command list in place of its subcommands.
type GroupFilter struct {
	Name   string
	Parent string
}

func (GroupFilter) isFilter() {}

// HandlerFunc processes a canonical message and returns the chain to send
// back, which may be empty.
type HandlerFunc func(ctx context.Context, msg *message.Message) (message.Chain, error)

// Handler binds a filter to its function. Module groups handlers for
// activation control and Description feeds the platform command list.
type Handler struct {
	Module      string
	Filter      Filter
	Description string
	Fn          HandlerFunc
}

// Registry holds registered handlers and per-module activation state.
// Registration order is preserved; later registrations shadow earlier ones
// when they surface under the same command name.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	modules  map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]bool)}
}

// Register adds a handler and activates its module if it is new.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
	if h.Module != "" {
		if _, seen := r.modules[h.Module]; !seen {
			r.modules[h.Module] = true
		}
	}
}

func (r *Registry) SetModuleActivated(module string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[module] = active
}

// ModuleActivated reports whether the module's handlers participate in
// dispatch and command registration. Unknown modules are treated as active.
func (r *Registry) ModuleActivated(module string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active, ok := r.modules[module]
	if !ok {
		return true
	}
	return active
}

// Handlers returns a snapshot of all registered handlers.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Gateway consumes inbound messages from the bus, dispatches matching command
// handlers, and publishes their responses outbound.
type Gateway struct {
	broker   bus.Broker
	registry *Registry
	fallback HandlerFunc
}

func NewGateway(broker bus.Broker, registry *Registry) *Gateway {
	return &Gateway{broker: broker, registry: registry}
}

// SetFallback installs a handler for messages no command matches.
func (g *Gateway) SetFallback(fn HandlerFunc) {
	g.fallback = fn
}

// Run blocks until ctx is cancelled or the bus closes.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		evt, ok := g.broker.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		if evt.Message == nil {
			continue
		}
		g.dispatch(ctx, evt.Message)
	}
}

func (g *Gateway) dispatch(ctx context.Context, msg *message.Message) {
	fn := g.match(msg.Text)
	if fn == nil {
		fn = g.fallback
	}
	if fn == nil {
		return
	}

	chain, err := fn(ctx, msg)
	if err != nil {
		logger.WarnCF(component, "Handler failed", map[string]any{
			"session": msg.SessionID,
			"error":   err.Error(),
		})
		return
	}
	if len(chain) == 0 {
		return
	}
	g.broker.PublishOutbound(bus.OutboundEvent{
		SessionID: msg.SessionID,
		Chain:     chain,
	})
}

// match resolves the handler for a command line. Top-level commands match
// their first token; grouped commands match "/group sub". Later registrations
// win over earlier ones.
func (g *Gateway) match(text string) HandlerFunc {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	first := strings.TrimPrefix(fields[0], "/")

	var found HandlerFunc
	for _, h := range g.registry.Handlers() {
		if !g.registry.ModuleActivated(h.Module) {
			continue
		}
		cf, ok := h.Filter.(CommandFilter)
		if !ok {
			continue
		}
		switch len(cf.Parents) {
		case 0:
			if cf.Name == first {
				found = h.Fn
			}
		case 1:
			if len(fields) >= 2 && cf.Parents[0] == first && cf.Name == fields[1] {
				found = h.Fn
			}
		}
	}
	return found
}
