package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/parleychat/parley/middleware/log"
)

const channelPattern = "group:*:messages"

// ChannelName 返回群组对应的 pub/sub 频道名
func ChannelName(groupID uint) string {
	return fmt.Sprintf("group:%d:messages", groupID)
}

// GroupFromChannel 从频道名解析群组ID
func GroupFromChannel(name string) (uint, bool) {
	rest, ok := strings.CutPrefix(name, "group:")
	if !ok {
		return 0, false
	}
	idStr, ok := strings.CutSuffix(rest, ":messages")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// MessagePayload 广播给订阅者的消息体
type MessagePayload struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Event 一次群组广播
type Event struct {
	GroupID uint           `json:"group_id"`
	Message MessagePayload `json:"message"`
}

// Channel 以 Redis pub/sub 实现的群组广播通道。
// 投递是尽力而为：发布者不等待也不感知订阅端结果。
type Channel struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// NewChannel 创建广播通道
func NewChannel(rdb *redis.Client, log *logger.Logger) *Channel {
	return &Channel{rdb: rdb, logger: log}
}

// Publish 向群组频道发布一条消息
func (c *Channel) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Message)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}
	if err := c.rdb.Publish(ctx, ChannelName(event.GroupID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to group %d: %w", event.GroupID, err)
	}
	return nil
}

// Subscribe 订阅所有群组频道，把解码后的事件推到返回的 channel 上。
// ctx 取消后订阅关闭、channel 被关掉。
func (c *Channel) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := c.rdb.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to group channels: %w", err)
	}

	events := make(chan Event, 256)
	go func() {
		defer close(events)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				groupID, ok := GroupFromChannel(msg.Channel)
				if !ok {
					c.logger.Warn("unexpected pubsub channel", zap.String("channel", msg.Channel))
					continue
				}
				var payload MessagePayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					c.logger.Warn("failed to decode broadcast payload", zap.Error(err))
					continue
				}
				select {
				case events <- Event{GroupID: groupID, Message: payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
