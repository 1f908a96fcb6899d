package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"go.uber.org/zap"
)

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
}

// messageCreator is the part of the IM API the messenger uses
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger delivers notifications as Lark IM text messages
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a messenger backed by the Lark SDK
func NewMessenger(cfg Config, logger *zap.Logger) *Messenger {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &Messenger{
		messages: client.Im.Message,
		logger:   logger,
	}
}

// Send delivers title and body to the recipient's Lark open_id
func (m *Messenger) Send(ctx context.Context, recipient *entity.User, title, body string) error {
	if recipient == nil || recipient.LarkOpenID == "" {
		return fmt.Errorf("recipient has no lark open_id")
	}

	msg, err := textMessageBody(recipient.LarkOpenID, title, body)
	if err != nil {
		return err
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(msg).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.Int64("user_id", recipient.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.Int64("user_id", recipient.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.Int64("user_id", recipient.ID))
	return nil
}

// textMessageBody builds the IM body for a text message to openID
func textMessageBody(openID, title, body string) (*larkim.CreateMessageReqBody, error) {
	content, err := json.Marshal(map[string]string{"text": title + "\n" + body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType(larkim.MsgTypeText).
		Content(string(content)).
		Build(), nil
}

// LogSender writes notifications to the log instead of delivering them.
// It is used when no Lark app is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification
func (s *LogSender) Send(ctx context.Context, recipient *entity.User, title, body string) error {
	if recipient == nil {
		return fmt.Errorf("recipient is required")
	}
	s.logger.Info("Notification",
		zap.Int64("user_id", recipient.ID),
		zap.String("email", recipient.Email),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogSender)(nil)
)
