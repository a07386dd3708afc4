package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/predictbot/pkg/ratelimit"
)

// Client Telegram Bot API 客户端（getUpdates 长轮询 + sendMessage）
// 令牌桶在 resty 重试之外给所有请求加频率下限，避免触发 Bot API 的 429
type Client struct {
	client  *resty.Client
	limiter *ratelimit.TokenBucket
}

// NewClient 创建客户端；token 只进 URL，不落日志
func NewClient(token string) *Client {
	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(fmt.Sprintf("https://api.telegram.org/bot%s", token)).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{
		client:  client,
		limiter: ratelimit.NewTokenBucket(30, 1),
	}
}

// Update getUpdates 返回的一条更新
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message 消息体（只取用到的字段）
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
}

// Chat 会话
type Chat struct {
	ID int64 `json:"id"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates 长轮询拉取更新；offset 为上次处理到的 update_id + 1
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("offset", fmt.Sprintf("%d", offset)).
		SetQueryParam("timeout", fmt.Sprintf("%d", timeoutSec)).
		SetResult(&out).
		Get("/getUpdates")
	if err != nil {
		return nil, errors.Wrap(err, "getUpdates 请求失败")
	}
	if resp.IsError() || !out.OK {
		return nil, errors.Errorf("getUpdates 返回错误: status=%d desc=%s", resp.StatusCode(), out.Description)
	}

	var updates []Update
	if err := json.Unmarshal(out.Result, &updates); err != nil {
		return nil, errors.Wrap(err, "解析 getUpdates 结果失败")
	}
	return updates, nil
}

// SendMessage 发送文本消息
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var out apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id": chatID,
			"text":    text,
		}).
		SetResult(&out).
		Post("/sendMessage")
	if err != nil {
		return errors.Wrap(err, "sendMessage 请求失败")
	}
	if resp.IsError() || !out.OK {
		return errors.Errorf("sendMessage 返回错误: status=%d desc=%s", resp.StatusCode(), out.Description)
	}
	return nil
}
