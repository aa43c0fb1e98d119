package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

var ErrTelegramDisabled = errors.New("telegram notifications disabled")

// DocumentSender часть API бота, используемая для отправки отчетов.
type DocumentSender interface {
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

type TelegramService struct {
	bot      DocumentSender
	chatID   string
	disabled bool
}

func NewTelegramService(cfg *config.Config) *TelegramService {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		slog.Info("Telegram notifications disabled")
		return &TelegramService{disabled: true}
	}
	b, err := bot.New(cfg.TelegramBotToken)
	if err != nil {
		slog.Error("Connect to TG bot", "err", err)
		return &TelegramService{disabled: true}
	}
	return &TelegramService{bot: b, chatID: cfg.TelegramChatID}
}

func NewTelegramServiceWithSender(sender DocumentSender, chatID string) *TelegramService {
	return &TelegramService{bot: sender, chatID: chatID, disabled: sender == nil || chatID == ""}
}

func (ts *TelegramService) Disabled() bool {
	return ts.disabled
}

// SendReport отправляет PDF в чат с подписью caption.
func (ts *TelegramService) SendReport(ctx context.Context, doc *types.RenderedDocument, caption string) error {
	if ts.disabled {
		return ErrTelegramDisabled
	}
	if doc == nil || len(doc.Data) == 0 {
		return ErrNoDocument
	}

	if _, err := ts.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: ts.chatID,
		Document: &models.InputFileUpload{
			Filename: doc.Name,
			Data:     bytes.NewReader(doc.Data),
		},
		Caption: caption,
	}); err != nil {
		return fmt.Errorf("send report to telegram: %w", err)
	}
	return nil
}
