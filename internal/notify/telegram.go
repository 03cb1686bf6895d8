package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	logx "athand/pkg/logx"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Enabled    bool
	Token      string
	ChatID     int64
	ThreadID   int
	APIURL     string // empty means the public Bot API
	RatePerSec int
	Timeout    time.Duration
}

// TelegramSink posts the notification to one chat (and optional forum topic).
type TelegramSink struct {
	cfg     TelegramConfig
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegramSink(cfg TelegramConfig, log logx.Logger) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notify.telegram.token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify.telegram.chat_id is required")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Offline skips getMe; the sink only sends.
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{
		cfg: cfg,
		bot: b,
		// Token bucket: burst = rate per sec.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Notify(ctx context.Context, n Notification) Result {
	start := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return done(s.Name(), start, err)
	}
	msg, err := s.bot.Send(&tele.Chat{ID: s.cfg.ChatID}, n.Text(), &tele.SendOptions{
		ThreadID:              s.cfg.ThreadID,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return done(s.Name(), start, err)
	}
	s.log.Debug("telegram message sent", logx.Int64("chat_id", s.cfg.ChatID), logx.Int("message_id", msg.ID))
	return done(s.Name(), start, nil)
}
