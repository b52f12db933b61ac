package alerts

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers one alert message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type telegramSender struct {
	bot  *tele.Bot
	chat *tele.Chat
	opts *tele.SendOptions
}

// NewTelegram returns a Sender posting to one chat (and optional forum
// thread). The bot only sends; it never polls for updates.
func NewTelegram(token string, chatID int64, threadID int) (Sender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &telegramSender{
		bot:  b,
		chat: &tele.Chat{ID: chatID},
		opts: &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
			ThreadID:              threadID,
		},
	}, nil
}

func (s *telegramSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, text, s.opts)
	return err
}
