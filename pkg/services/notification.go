package services

import (
	"context"

	"zufang/pkg/config"
)

// NotificationClient 通知服务客户端
type NotificationClient struct {
	*Client
}

// NewNotificationClient 创建通知服务客户端
func NewNotificationClient() *NotificationClient {
	return &NotificationClient{
		Client: NewClient("notification-service", config.GetString("services.notification_url")),
	}
}

// Send 给用户推送一条通知
func (c *NotificationClient) Send(ctx context.Context, userID, title, message, kind string, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	body := map[string]interface{}{
		"user_id":  userID,
		"title":    title,
		"message":  message,
		"type":     kind,
		"metadata": metadata,
	}
	return c.post(ctx, "/api/notifications", body, nil)
}
