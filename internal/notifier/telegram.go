package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
)

// TelegramNotifier posts digests through the Telegram Bot API.
type TelegramNotifier struct {
	token  string
	client *http.Client
	log    zerolog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a notifier. client may be nil, in which case a
// client with the given timeout is used.
func NewTelegramNotifier(token string, client *http.Client, timeout time.Duration, log zerolog.Logger) *TelegramNotifier {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &TelegramNotifier{
		token:  token,
		client: client,
		log:    log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// botAPI connects on first use; the connection check calls getMe.
func (n *TelegramNotifier) botAPI() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot != nil {
		return n.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(n.token, n.client)
	if err != nil {
		return nil, err
	}
	n.log.Debug().Str("bot", bot.Self.UserName).Msg("Telegram bot connected")
	n.bot = bot
	return bot, nil
}

// SendMessage posts text to chatID. A numeric chatID addresses a user or
// group, "@name" addresses a channel. Every failure is an ErrDelivery.
func (n *TelegramNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	const op = "telegram.sendMessage"

	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.ErrDelivery, op, err)
	}

	msg, err := newMessage(chatID, text)
	if err != nil {
		return apperr.New(apperr.ErrDelivery, op, err)
	}

	bot, err := n.botAPI()
	if err != nil {
		return apperr.New(apperr.ErrDelivery, op, fmt.Errorf("connect bot: %w", err))
	}

	sent, err := bot.Send(msg)
	if err != nil {
		return apperr.New(apperr.ErrDelivery, op, err)
	}

	n.log.Info().
		Int("message_id", sent.MessageID).
		Str("chat_id", chatID).
		Msg("Telegram message sent")
	return nil
}

func newMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q", chatID)
	}
	return tgbotapi.NewMessage(id, text), nil
}
