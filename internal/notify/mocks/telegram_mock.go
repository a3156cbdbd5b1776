// Package mocks provides a recording Telegram client for notifier tests.
package mocks

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramAPI is the subset of the Telegram client used for notifications.
// It lives here to avoid an import cycle between notify and mocks.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

// SentMessage captures a message sent via MockBot.
type SentMessage struct {
	ChatID any
	Text   string
}

// SentFile captures a photo or document sent via MockBot.
type SentFile struct {
	ChatID   any
	Filename string
	Caption  string
	Size     int
}

var _ TelegramAPI = (*MockBot)(nil)

// MockBot records notifications instead of sending them.
type MockBot struct {
	mu sync.RWMutex

	SentMessages  []SentMessage
	SentPhotos    []SentFile
	SentDocuments []SentFile

	// SendMessageError allows simulating SendMessage failures.
	SendMessageError error
	// SendPhotoError allows simulating SendPhoto failures.
	SendPhotoError error
	// SendDocumentError allows simulating SendDocument failures.
	SendDocumentError error

	// NextMessageID is auto-incremented for each sent message.
	NextMessageID int
}

// NewMockBot creates a new MockBot instance.
func NewMockBot() *MockBot {
	return &MockBot{NextMessageID: 1000}
}

// SendMessage records a text message.
func (m *MockBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}
	m.SentMessages = append(m.SentMessages, SentMessage{ChatID: params.ChatID, Text: params.Text})
	return m.reply(params.ChatID), nil
}

// SendPhoto records a photo upload.
func (m *MockBot) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendPhotoError != nil {
		return nil, m.SendPhotoError
	}
	m.SentPhotos = append(m.SentPhotos, sentFile(params.ChatID, params.Photo, params.Caption))
	return m.reply(params.ChatID), nil
}

// SendDocument records a document upload.
func (m *MockBot) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendDocumentError != nil {
		return nil, m.SendDocumentError
	}
	m.SentDocuments = append(m.SentDocuments, sentFile(params.ChatID, params.Document, params.Caption))
	return m.reply(params.ChatID), nil
}

// Counts returns the number of messages, photos and documents recorded.
func (m *MockBot) Counts() (messages, photos, documents int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages), len(m.SentPhotos), len(m.SentDocuments)
}

// LastSentMessage returns the most recently sent message, or nil if none.
func (m *MockBot) LastSentMessage() *SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentMessages) == 0 {
		return nil
	}
	return &m.SentMessages[len(m.SentMessages)-1]
}

// LastSentDocument returns the most recently sent document, or nil if none.
func (m *MockBot) LastSentDocument() *SentFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentDocuments) == 0 {
		return nil
	}
	return &m.SentDocuments[len(m.SentDocuments)-1]
}

func (m *MockBot) reply(chatID any) *models.Message {
	msgID := m.NextMessageID
	m.NextMessageID++
	return &models.Message{ID: msgID, Chat: models.Chat{ID: chatIDToInt64(chatID)}}
}

func sentFile(chatID any, file models.InputFile, caption string) SentFile {
	sent := SentFile{ChatID: chatID, Caption: caption}
	if upload, ok := file.(*models.InputFileUpload); ok {
		sent.Filename = upload.Filename
		if r, ok := upload.Data.(interface{ Len() int }); ok {
			sent.Size = r.Len()
		}
	}
	return sent
}

func chatIDToInt64(chatID any) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
