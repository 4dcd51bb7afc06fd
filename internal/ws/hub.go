package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/fanout"
	logger "github.com/parleychat/parley/middleware/log"
)

// subscription 把一个连接订阅到一个群组话题
type subscription struct {
	client  *Client
	groupID uint
}

// Hub 维护活跃连接与群组订阅，把广播事件派发给本进程的订阅者。
// 订阅是连接级的：连接断开订阅即消失，Hub 不持久化任何东西。
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 群组对应的客户端集合 GroupID -> Client -> bool
	rooms map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan *subscription

	// 广播事件通道，由 fanout 订阅循环或本地测试喂入
	broadcast chan *fanout.Event

	logger *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *subscription),
		broadcast:  make(chan *fanout.Event, 256),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for groupID := range client.groups {
					if room, ok := h.rooms[groupID]; ok {
						delete(room, client)
						if len(room) == 0 {
							delete(h.rooms, groupID)
						}
					}
				}
			}

		case sub := <-h.join:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if _, ok := h.rooms[sub.groupID]; !ok {
				h.rooms[sub.groupID] = make(map[*Client]bool)
			}
			h.rooms[sub.groupID][sub.client] = true
			sub.client.groups[sub.groupID] = true

		case event := <-h.broadcast:
			for client := range h.rooms[event.GroupID] {
				select {
				case client.send <- event:
				default:
					// 发送缓冲区满，判定为慢消费者，断开并清理
					close(client.send)
					delete(h.clients, client)
					for groupID := range client.groups {
						if room, ok := h.rooms[groupID]; ok {
							delete(room, client)
							if len(room) == 0 {
								delete(h.rooms, groupID)
							}
						}
					}
				}
			}
		}
	}
}

// RunFanout 订阅 Redis 群组频道并把事件送进本地广播循环。
// ctx 取消后返回。
func (h *Hub) RunFanout(ctx context.Context, channel *fanout.Channel) error {
	events, err := channel.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for event := range events {
			e := event
			select {
			case h.broadcast <- &e:
			case <-ctx.Done():
				return
			}
		}
		h.logger.Warn("fanout subscription closed", zap.String("reason", "event stream ended"))
	}()
	return nil
}

// Broadcast 把事件送进本地派发循环（fanout 走不通时的进程内兜底，测试也用它）
func (h *Hub) Broadcast(event *fanout.Event) {
	h.broadcast <- event
}
