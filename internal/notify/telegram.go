// Package notify оповещает участников о созданной паре через Telegram.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет сообщения в фоне и не блокирует подбор пары
type TelegramNotifier struct {
	sender messageSender
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewTelegramNotifier(token string, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return newTelegramNotifier(b, logger), nil
}

func newTelegramNotifier(sender messageSender, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		logger: logger,
	}
}

// NotifyMatch отправляет каждому участнику с привязанным чатом ссылку на встречу
func (n *TelegramNotifier) NotifyMatch(ctx context.Context, match *model.Match, participants ...*model.Student) {
	for i, p := range participants {
		if p == nil || p.TelegramChatID == nil {
			continue
		}

		text := MatchMessage(match, partnerOf(participants, i))
		chatID := *p.TelegramChatID
		studentID := p.ID

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()

			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()

			_, err := n.sender.SendMessage(sendCtx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: models.ParseModeHTML,
			})
			if err != nil {
				n.logger.Warn("Failed to send match notification",
					zap.String("match_id", match.ID),
					zap.String("student_id", studentID),
					zap.Error(err),
				)
				return
			}

			n.logger.Info("Match notification sent",
				zap.String("match_id", match.ID),
				zap.String("student_id", studentID),
			)
		}()
	}
}

// Wait дожидается отправки всех сообщений
func (n *TelegramNotifier) Wait() {
	n.wg.Wait()
}

func partnerOf(participants []*model.Student, self int) *model.Student {
	for i, p := range participants {
		if i != self && p != nil {
			return p
		}
	}
	return nil
}

// MatchMessage текст оповещения о паре
func MatchMessage(match *model.Match, partner *model.Student) string {
	name := "a classmate"
	if partner != nil && partner.Name != "" {
		name = html.EscapeString(partner.Name)
	}

	var sb strings.Builder
	sb.WriteString("🤝 <b>Study group match found!</b>\n\n")
	sb.WriteString(fmt.Sprintf("You were paired with %s.\n", name))
	sb.WriteString(fmt.Sprintf("📚 Shared concepts: %d\n", len(match.ConceptIDs)))
	sb.WriteString(fmt.Sprintf("🔗 Join: %s", html.EscapeString(match.MeetingLink)))
	return sb.String()
}

// Noop оповещатель-заглушка, когда Telegram не настроен
type Noop struct{}

func (Noop) NotifyMatch(context.Context, *model.Match, ...*model.Student) {}
