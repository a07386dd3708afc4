package telegram

import (
	"context"
	"fmt"

	"github.com/betbot/predictbot/pkg/logger"
)

// Notifier 向固定会话推送事件通知
// 通知失败只记日志，不影响主流程
type Notifier struct {
	client *Client
	chatID int64
}

// NewNotifier 创建通知器；chatID 为 0 时全部通知静默丢弃
func NewNotifier(client *Client, chatID int64) *Notifier {
	return &Notifier{client: client, chatID: chatID}
}

// Notify 发送一条通知
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil || n.client == nil || n.chatID == 0 {
		return
	}
	if err := n.client.SendMessage(ctx, n.chatID, text); err != nil {
		logger.Warnf("发送通知失败: %v", err)
	}
}

// Notifyf 格式化发送一条通知
func (n *Notifier) Notifyf(ctx context.Context, format string, args ...any) {
	n.Notify(ctx, fmt.Sprintf(format, args...))
}
