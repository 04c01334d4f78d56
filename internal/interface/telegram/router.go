package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler/callback"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER INTERFACES
// Interfaces that handlers must implement to be registered with the router.
// ══════════════════════════════════════════════════════════════════════════════

// CommandHandler is the interface for command handlers.
type CommandHandler interface {
	Handle(ctx context.Context, req handler.Request) (*handler.Response, error)
}

// CallbackHandler is the interface for callback handlers.
type CallbackHandler interface {
	Handle(ctx context.Context, req callback.Request) (*callback.Response, error)
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(ctx context.Context, req handler.Request) (*handler.Response, error)

// Handle implements CommandHandler.
func (f CommandFunc) Handle(ctx context.Context, req handler.Request) (*handler.Response, error) {
	return f(ctx, req)
}

// FeatureChecker is satisfied by *config.FeatureFlags.
type FeatureChecker interface {
	IsEnabled(name string) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes incoming commands and button presses to handlers.
// ══════════════════════════════════════════════════════════════════════════════

type commandRoute struct {
	handler CommandHandler
	feature string
}

// Router routes Telegram updates to appropriate handlers.
type Router struct {
	logger   *slog.Logger
	features FeatureChecker

	mu        sync.RWMutex
	commands  map[string]commandRoute
	callbacks map[string]CallbackHandler
}

// NewRouter creates a new router. features may be nil.
func NewRouter(features FeatureChecker, log *slog.Logger) *Router {
	return &Router{
		logger:    logger.OrDefault(log),
		features:  features,
		commands:  make(map[string]commandRoute),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a handler for a command without the leading "/".
// A non-empty feature hides the command while that feature flag is off.
func (r *Router) RegisterCommand(command string, h CommandHandler, feature string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(command)] = commandRoute{handler: h, feature: feature}
	r.logger.Debug("registered command handler", "command", command)
}

// RegisterCallbackPrefix registers a handler for callbacks matching a prefix.
// The prefix should include the trailing delimiter (e.g., "predict:").
func (r *Router) RegisterCallbackPrefix(prefix string, h CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
	r.logger.Debug("registered callback prefix handler", "prefix", prefix)
}

// Commands returns the registered command names.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	return out
}

// HandleCommand routes a command to its handler.
func (r *Router) HandleCommand(ctx context.Context, command string, req handler.Request) (*handler.Response, error) {
	r.mu.RLock()
	route, ok := r.commands[strings.ToLower(command)]
	r.mu.RUnlock()

	if !ok || (route.feature != "" && r.features != nil && !r.features.IsEnabled(route.feature)) {
		r.logger.Debug("no handler for command", "command", command)
		return unknownCommand(), nil
	}

	return route.handler.Handle(ctx, req)
}

// HandleCallback routes a callback to the handler with the longest matching prefix.
func (r *Router) HandleCallback(ctx context.Context, req callback.Request) (*callback.Response, error) {
	r.mu.RLock()
	var matchedPrefix string
	var matched CallbackHandler
	for prefix, h := range r.callbacks {
		if strings.HasPrefix(req.Data, prefix) && len(prefix) > len(matchedPrefix) {
			matchedPrefix = prefix
			matched = h
		}
	}
	r.mu.RUnlock()

	if matched == nil {
		r.logger.Debug("no handler for callback", "data", req.Data)
		return &callback.Response{AnswerText: "Tlačítko už neplatí", RemoveButtons: true}, nil
	}

	return matched.Handle(ctx, req)
}

func unknownCommand() *handler.Response {
	return &handler.Response{Text: "Neznámý příkaz. Nápověda: /start", IsError: true}
}
