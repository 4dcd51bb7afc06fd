package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/fanout"
	"github.com/parleychat/parley/internal/services"
	logger "github.com/parleychat/parley/middleware/log"
	"github.com/parleychat/parley/pkg/mq"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientEvent 客户端入站事件。身份一律取自连接的 JWT，
// 载荷里即使带了 name/userId 也不采信。
type clientEvent struct {
	Event   string         `json:"event"`
	GroupID uint           `json:"group_id"`
	Message *clientMessage `json:"message"`
}

type clientMessage struct {
	Content string `json:"content"`
}

// serverEvent 服务端出站事件
type serverEvent struct {
	Event   string                `json:"event"`
	GroupID uint                  `json:"group_id"`
	Message fanout.MessagePayload `json:"message"`
}

// Client 代表一个 WebSocket 连接
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// 缓冲通道，Hub 往这里投递广播事件
	send chan *fanout.Event

	// 连接的已认证身份
	caller services.Caller

	// 本连接已订阅的群组，只有 Hub 的 Run 循环读写
	groups map[uint]bool

	messageService *services.MessageService
	producer       *mq.KafkaProducer
	logger         *logger.Logger
}

// readPump 读取客户端事件：joinGroup 订阅话题，sendMessage 持久化并广播
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Uint("user_id", c.caller.ID), zap.Error(err))
			}
			break
		}

		var event clientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.logger.Warn("failed to decode client event", zap.Uint("user_id", c.caller.ID), zap.Error(err))
			continue
		}

		switch event.Event {
		case "joinGroup":
			if event.GroupID == 0 {
				continue
			}
			c.hub.join <- &subscription{client: c, groupID: event.GroupID}

		case "sendMessage":
			if event.GroupID == 0 || event.Message == nil {
				continue
			}
			c.sendMessage(event.GroupID, event.Message.Content)

		default:
			c.logger.Warn("unknown client event", zap.String("event", event.Event))
		}
	}
}

// sendMessage 走 Kafka 异步链路；没配 Kafka 时直接调消息服务。
// 实时路径没有错误回传通道，失败只记日志。
func (c *Client) sendMessage(groupID uint, content string) {
	if c.producer != nil {
		envelope := &mq.MessageEnvelope{
			UserID:   c.caller.ID,
			UserName: c.caller.Name,
			GroupID:  groupID,
			Content:  content,
		}
		err := c.producer.SendEnvelope(envelope)
		if err == nil {
			return
		}
		c.logger.Error("kafka send failed, falling back to direct write",
			zap.Uint("group_id", groupID),
			zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.messageService.SendMessageRealtime(ctx, groupID, c.caller, content); err != nil {
		c.logger.Warn("realtime send rejected",
			zap.Uint("user_id", c.caller.ID),
			zap.Uint("group_id", groupID),
			zap.Error(err))
	}
}

// writePump 把 Hub 投递的事件编码成 receiveMessage 发给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			out := serverEvent{
				Event:   "receiveMessage",
				GroupID: event.GroupID,
				Message: event.Message,
			}
			if err := c.conn.WriteJSON(out); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 升级连接并挂到 Hub 上
func ServeWs(hub *Hub, messageService *services.MessageService, producer *mq.KafkaProducer, log *logger.Logger, c *gin.Context) {
	caller, ok := CallerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan *fanout.Event, 256),
		caller:         caller,
		groups:         make(map[uint]bool),
		messageService: messageService,
		producer:       producer,
		logger:         log,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// CallerFromContext 取出认证中间件写入的调用者身份
func CallerFromContext(c *gin.Context) (services.Caller, bool) {
	userID, ok := c.Get("user_id")
	if !ok {
		return services.Caller{}, false
	}
	name, _ := c.Get("user_name")
	nameStr, _ := name.(string)
	id, ok := userID.(uint)
	if !ok {
		return services.Caller{}, false
	}
	return services.Caller{ID: id, Name: nameStr}, true
}
