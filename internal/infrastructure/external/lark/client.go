package lark

import (
	"context"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL switches between Feishu and Lark; empty means Feishu
	BaseURL string
	// ReceiveIDType is open_id, user_id, email or chat_id
	ReceiveIDType string
	ReceiveID     string
}

// MessageSender delivers one IM message and returns its id
type MessageSender interface {
	Send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// SDKSender sends messages through the Lark open platform SDK
type SDKSender struct {
	client *lark.Client
	logger *zap.Logger
}

// NewSDKSender creates a sender authenticated as the configured app
func NewSDKSender(cfg Config, logger *zap.Logger) *SDKSender {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKSender{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		logger: logger,
	}
}

// Send sends a message to a user or group
func (s *SDKSender) Send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := s.client.Im.Message.Create(ctx, req)
	if err != nil {
		s.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		s.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}
