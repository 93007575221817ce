// Package bot is the Telegram surface of Yachay: photos become new words,
// exercises are answered by button, text or voice.
package bot

import (
	"context"
	"io"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/yachay/internal/catalog"
	"github.com/example/yachay/internal/config"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/detection"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/internal/session"
	"github.com/example/yachay/internal/speech"
	"github.com/example/yachay/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// api is the part of *tgbotapi.BotAPI the bot uses
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services behind the bot
type Deps struct {
	Store     *database.Store
	Catalog   *catalog.Catalog
	Sessions  *session.Manager
	Detection *detection.Service
	Judge     *speech.Judge
	Tracker   *progress.Tracker
}

// Bot represents the Telegram bot application
type Bot struct {
	api     api
	deps    Deps
	cfg     Config
	admins  map[int64]bool
	limiter *rate.Limiter
	http    *http.Client
	log     *zap.Logger

	locksMu sync.Mutex
	locks   map[int64]*userLock // only users with an update in flight
	known   sync.Map            // user ids already stored
	wg      sync.WaitGroup
}

// New connects to Telegram with the configured token
func New(tg config.TelegramConfig, deps Deps, cfg Config, log *zap.Logger) (*Bot, error) {
	if tg.Token == "" {
		return nil, eris.New("bot: telegram token is not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(tg.Token)
	if err != nil {
		return nil, eris.Wrap(err, "bot: unable to create bot")
	}
	b := newBot(botAPI, tg, deps, cfg, log)
	b.log.Info("authorized", zap.String("account", botAPI.Self.UserName))
	return b, nil
}

func newBot(a api, tg config.TelegramConfig, deps Deps, cfg Config, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if tg.RatePerSecond > 0 {
		limit = rate.Limit(tg.RatePerSecond)
	}
	admins := make(map[int64]bool, len(tg.AdminIDs))
	for _, id := range tg.AdminIDs {
		admins[id] = true
	}
	return &Bot{
		api:     a,
		deps:    deps,
		cfg:     cfg,
		admins:  admins,
		limiter: rate.NewLimiter(limit, 1),
		http:    &http.Client{Timeout: cfg.DownloadTimeout},
		log:     log.Named("bot"),
		locks:   make(map[int64]*userLock),
	}
}

// Run polls updates until ctx is cancelled, then waits for in-flight handlers
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	// handlers in flight at shutdown run to completion
	handlerCtx := context.WithoutCancel(ctx)

	b.log.Info("bot started")
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(handlerCtx, update)
			}()
		}
	}
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lock serializes the updates of one user. The entry is dropped once the
// last waiter releases it.
func (b *Bot) lock(userID int64) func() {
	b.locksMu.Lock()
	l, ok := b.locks[userID]
	if !ok {
		l = &userLock{}
		b.locks[userID] = l
	}
	l.refs++
	b.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(b.locks, userID)
		}
		b.locksMu.Unlock()
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) error {
	if _, ok := b.known.Load(from.ID); ok {
		return nil
	}
	err := database.NewUserRepository(b.deps.Store.DB()).Upsert(ctx, &models.User{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		return err
	}
	b.known.Store(from.ID, struct{}{})
	return nil
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) sendMessage(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Send(msg); err != nil {
		return eris.Wrap(err, "bot: send message")
	}
	return nil
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	return b.sendMessage(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(callback *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		b.log.Warn("failed to answer callback", zap.Error(err))
	}
}

// download fetches a Telegram file up to MaxDownloadBytes
func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, eris.Wrap(err, "bot: resolve file")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "bot: build download request")
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bot: download file")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bot: download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxDownloadBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "bot: read file")
	}
	if int64(len(data)) > b.cfg.MaxDownloadBytes {
		return nil, errTooLarge
	}
	return data, nil
}

var errTooLarge = eris.New("bot: file too large")

// SendReminder implements scheduler.Notifier
func (b *Bot) SendReminder(ctx context.Context, userID int64, goal *models.DailyGoal) error {
	// private chats share the user id
	msg := tgbotapi.NewMessage(userID, renderReminder(goal))
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	if err := b.sendMessage(ctx, msg); err != nil {
		return err
	}
	b.log.Debug("reminder sent", zap.Int64("user_id", userID))
	return nil
}

// MainMenuButtons is the keyboard shown under menus and reminders
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "✏️ Practicar", CallbackData: callbackPractice}},
		{
			{Text: "📚 Vocabulario", CallbackData: callbackVocab},
			{Text: "🎯 Meta diaria", CallbackData: callbackGoal},
		},
	}
}
