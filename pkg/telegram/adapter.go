package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegohandler"

	"github.com/lumiclaw/lumiclaw/pkg/bus"
	"github.com/lumiclaw/lumiclaw/pkg/config"
	"github.com/lumiclaw/lumiclaw/pkg/gateway"
	"github.com/lumiclaw/lumiclaw/pkg/logger"
	"github.com/lumiclaw/lumiclaw/pkg/utils"
)

const (
	component = "telegram"

	pollTimeoutSeconds = 30

	// defaultThrottle bounds the edit-call rate during streaming delivery.
	defaultThrottle = 600 * time.Millisecond
)

// api is the slice of *telego.Bot the adapter issues calls against.
// Narrow on purpose: tests substitute a recording fake.
type api interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	SendVoice(ctx context.Context, params *telego.SendVoiceParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	DeleteMyCommands(ctx context.Context, params *telego.DeleteMyCommandsParams) error
}

// Adapter converts between Telegram updates and the canonical message model,
// and drives all outbound delivery (plain, media, streaming).
type Adapter struct {
	cfg         config.TelegramConfig
	bot         *telego.Bot
	api         api
	broker      bus.Broker
	registry    *gateway.Registry
	connections *ConnectionTable
	httpClient  *http.Client

	instanceID string
	username   string
	fileURL    func(filePath string) string
	allowFrom  map[string]struct{}

	maxLen   int
	throttle time.Duration
	now      func() time.Time

	cmdMu     sync.Mutex
	lastCmdFP uint64
	hasCmdFP  bool

	handler *telegohandler.BotHandler
}

// New builds the adapter. connections may be shared with other components; a
// nil table gets a fresh one. registry may be nil when command registration
// is disabled.
func New(cfg config.TelegramConfig, broker bus.Broker, registry *gateway.Registry, connections *ConnectionTable) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}

	httpClient := &http.Client{}
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		httpClient = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
		opts = append(opts, telego.WithHTTPClient(httpClient))
	} else if os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" {
		httpClient = &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment}}
		opts = append(opts, telego.WithHTTPClient(httpClient))
	}

	if apiURL := strings.TrimSuffix(cfg.APIBaseURL, "/bot"); apiURL != "" && apiURL != "https://api.telegram.org" {
		opts = append(opts, telego.WithAPIServer(apiURL))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if connections == nil {
		connections = NewConnectionTable()
	}

	maxLen := cfg.MaxMessageLength
	if maxLen <= 0 {
		maxLen = 4096
	}

	fileURL := bot.FileDownloadURL
	if base := cfg.FileBaseURL; base != "" && base != "https://api.telegram.org/file/bot" {
		// Self-hosted Bot API servers expose files under their own base.
		// The base already ends in ".../file/bot"; the token follows directly.
		fileURL = func(filePath string) string {
			return base + cfg.Token + "/" + filePath
		}
	}

	return &Adapter{
		cfg:         cfg,
		bot:         bot,
		api:         bot,
		broker:      broker,
		registry:    registry,
		connections: connections,
		httpClient:  httpClient,
		instanceID:  strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		fileURL:     fileURL,
		allowFrom:   allowFromSet(cfg.AllowFrom),
		maxLen:      maxLen,
		throttle:    defaultThrottle,
		now:         time.Now,
	}, nil
}

// Connections exposes the business-connection table the adapter consults.
func (a *Adapter) Connections() *ConnectionTable {
	return a.connections
}

// Start begins long polling and blocks only during setup; update handling
// runs on background goroutines until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	logger.InfoC(component, "Starting Telegram adapter (polling mode)")

	updates, err := a.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: pollTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	a.username = a.bot.Username()

	bh, err := telegohandler.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}
	a.handler = bh

	bh.Handle(func(hctx *telegohandler.Context, update telego.Update) error {
		return a.handleUpdate(hctx, update)
	}, anyInboundMessage)

	bh.Handle(func(hctx *telegohandler.Context, update telego.Update) error {
		a.handleBusinessConnection(update.BusinessConnection)
		return nil
	}, anyBusinessConnection)

	bh.Handle(func(hctx *telegohandler.Context, update telego.Update) error {
		a.handleDeletedBusinessMessages(update.DeletedBusinessMessages)
		return nil
	}, anyDeletedBusinessMessages)

	logger.InfoCF(component, "Telegram adapter connected", map[string]any{
		"username":    a.username,
		"instance_id": a.instanceID,
	})

	if a.cfg.CommandRegister {
		if err := a.SyncCommands(ctx); err != nil {
			logger.ErrorCF(component, "Initial command registration failed", map[string]any{
				"error": err.Error(),
			})
		}
		if a.cfg.CommandAutoRefresh {
			go a.refreshCommandsLoop(ctx)
		}
	}

	go bh.Start()
	go a.outboundLoop(ctx)

	go func() {
		<-ctx.Done()
		bh.Stop()
	}()

	return nil
}

// Stop shuts the adapter down, withdrawing the published command set when
// registration was enabled.
func (a *Adapter) Stop(ctx context.Context) error {
	logger.InfoC(component, "Stopping Telegram adapter")

	if a.handler != nil {
		a.handler.Stop()
	}

	if a.cfg.CommandRegister {
		if err := a.api.DeleteMyCommands(ctx, &telego.DeleteMyCommandsParams{}); err != nil {
			logger.WarnCF(component, "Failed to withdraw commands on shutdown", map[string]any{
				"error": err.Error(),
			})
		}
	}

	return nil
}

// outboundLoop forwards canonical chains published on the bus to Telegram.
func (a *Adapter) outboundLoop(ctx context.Context) {
	for {
		evt, ok := a.broker.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		if err := a.SendChain(ctx, evt.SessionID, evt.Chain); err != nil {
			logger.WarnCF(component, "Outbound send failed", map[string]any{
				"session_id": evt.SessionID,
				"error":      err.Error(),
			})
		}
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, update telego.Update) error {
	msg := inboundPayload(update)
	if msg == nil {
		return nil
	}

	if msg.From != nil && !a.senderAllowed(msg.From) {
		logger.DebugCF(component, "Message rejected by allowlist", map[string]any{
			"user_id": msg.From.ID,
		})
		return nil
	}

	canonical, err := a.Translate(ctx, update)
	if err != nil {
		logger.DebugCF(component, "Dropping untranslatable update", map[string]any{
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
		return nil
	}
	if canonical == nil {
		// Recognized but fully handled (e.g. /start) or empty.
		return nil
	}

	logger.DebugCF(component, "Received message", map[string]any{
		"session_id": canonical.SessionID,
		"sender_id":  canonical.Sender.ID,
		"preview":    utils.Truncate(canonical.Text, 50),
	})

	a.broker.PublishInbound(bus.InboundEvent{Message: canonical})
	return nil
}

func (a *Adapter) handleBusinessConnection(bc *telego.BusinessConnection) {
	if bc == nil {
		return
	}
	a.connections.Upsert(connectionFromUpdate(bc))
}

func (a *Adapter) handleDeletedBusinessMessages(del *telego.BusinessMessagesDeleted) {
	if del == nil {
		return
	}
	logger.InfoCF(component, "Business messages deleted", map[string]any{
		"connection_id": del.BusinessConnectionID,
		"chat_id":       del.Chat.ID,
		"count":         len(del.MessageIDs),
	})
}

func (a *Adapter) senderAllowed(user *telego.User) bool {
	if len(a.allowFrom) == 0 {
		return true
	}
	if _, ok := a.allowFrom[fmt.Sprintf("%d", user.ID)]; ok {
		return true
	}
	if user.Username != "" {
		if _, ok := a.allowFrom[strings.TrimPrefix(strings.ToLower(user.Username), "@")]; ok {
			return true
		}
	}
	return false
}

func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowFrom))
	for _, v := range allowFrom {
		trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "@")
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// inboundPayload picks the message carried by an update: regular, business,
// or edited business, in that order.
func inboundPayload(update telego.Update) *telego.Message {
	switch {
	case update.Message != nil:
		return update.Message
	case update.BusinessMessage != nil:
		return update.BusinessMessage
	case update.EditedBusinessMessage != nil:
		return update.EditedBusinessMessage
	default:
		return nil
	}
}

func anyInboundMessage(_ context.Context, update telego.Update) bool {
	return inboundPayload(update) != nil
}

func anyBusinessConnection(_ context.Context, update telego.Update) bool {
	return update.BusinessConnection != nil
}

func anyDeletedBusinessMessages(_ context.Context, update telego.Update) bool {
	return update.DeletedBusinessMessages != nil
}

func connectionFromUpdate(bc *telego.BusinessConnection) BusinessConnection {
	return BusinessConnection{
		ID:            bc.ID,
		OwnerUserID:   fmt.Sprintf("%d", bc.User.ID),
		OwnerChatID:   fmt.Sprintf("%d", bc.UserChatID),
		Enabled:       bc.IsEnabled,
		CanReply:      bc.Rights != nil && bc.Rights.CanReply,
		EstablishedAt: time.Unix(bc.Date, 0),
	}
}
