package notify

import (
	"bytes"
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/notify/mocks"
	"gitlab.com/yelinaung/lease-engine/internal/report"
)

// TelegramAPI is the Telegram client surface used by TelegramNotifier.
type TelegramAPI = mocks.TelegramAPI

var _ TelegramAPI = (*tgbot.Bot)(nil)

// TelegramNotifier sends notifications to the owner's Telegram chat.
type TelegramNotifier struct {
	api TelegramAPI
}

// NewTelegramNotifier creates a notifier backed by a Telegram bot token.
// It never polls for updates.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return NewTelegramNotifierWithAPI(b), nil
}

// NewTelegramNotifierWithAPI creates a notifier over an existing client.
func NewTelegramNotifierWithAPI(api TelegramAPI) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

// RegularizationCommitted sends the summary, then the chart when there is
// something to chart, then the CSV statement.
func (n *TelegramNotifier) RegularizationCommitted(ctx context.Context, owner *models.User, st report.Statement) error {
	if owner.TelegramChatID == nil {
		return ErrNoChannel
	}
	chatID := *owner.TelegramChatID

	text := st.Summary()
	if st.Reference != "" {
		text += "\nReference: " + st.Reference
	}
	if _, err := n.api.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}

	if len(st.Lines) > 0 {
		chart, err := report.RegularizationChart(st)
		if err != nil {
			return err
		}
		if _, err := n.api.SendPhoto(ctx, &tgbot.SendPhotoParams{
			ChatID: chatID,
			Photo:  &tgmodels.InputFileUpload{Filename: st.ChartFilename(), Data: bytes.NewReader(chart)},
		}); err != nil {
			return fmt.Errorf("failed to send chart: %w", err)
		}
	}

	data, err := report.RegularizationCSV(st)
	if err != nil {
		return err
	}
	if _, err := n.api.SendDocument(ctx, &tgbot.SendDocumentParams{
		ChatID:   chatID,
		Document: &tgmodels.InputFileUpload{Filename: st.CSVFilename(), Data: bytes.NewReader(data)},
		Caption:  fmt.Sprintf("Regularization statement %d", st.Year),
	}); err != nil {
		return fmt.Errorf("failed to send statement: %w", err)
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int64("lease_id", st.LeaseID).
		Int("year", st.Year).
		Msg("Regularization notification sent")
	return nil
}

// RevisionCommitted sends the new rent of a revised lease.
func (n *TelegramNotifier) RevisionCommitted(ctx context.Context, owner *models.User, lease *models.Lease, period *models.LeaseFinancialPeriod) error {
	if owner.TelegramChatID == nil {
		return ErrNoChannel
	}
	chatID := *owner.TelegramChatID

	if _, err := n.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   RevisionText(lease, period),
	}); err != nil {
		return fmt.Errorf("failed to send revision: %w", err)
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int64("lease_id", lease.ID).
		Msg("Revision notification sent")
	return nil
}

// RevisionText describes a revised period.
func RevisionText(lease *models.Lease, period *models.LeaseFinancialPeriod) string {
	text := fmt.Sprintf("Rent revised for lease %d (%s)\nNew rent: %s\nCharges provision: %s\nEffective: %s",
		lease.ID, lease.TenantName,
		report.Cents(period.BaseRentCents),
		report.Cents(period.ServiceChargesCents),
		period.StartDate.Format("2006-01-02"))
	if period.BaseIndex != nil && period.NewIndex != nil {
		text += fmt.Sprintf("\nIndex: %s → %s", indexLabel(period.BaseIndex), indexLabel(period.NewIndex))
	}
	return text
}

func indexLabel(p *models.IndexPoint) string {
	return fmt.Sprintf("%d-Q%d %s", p.Year, p.Quarter, p.Value.String())
}
