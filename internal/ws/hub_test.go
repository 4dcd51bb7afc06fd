package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/fanout"
	"github.com/parleychat/parley/internal/services"
	logger "github.com/parleychat/parley/middleware/log"
)

func newTestHub(t *testing.T) *Hub {
	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)

	hub := NewHub(log)
	go hub.Run()
	return hub
}

// newTestClient builds a bare client without a live websocket connection.
func newTestClient(hub *Hub, userID uint, buffer int) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan *fanout.Event, buffer),
		caller: services.Caller{ID: userID, Name: "user"},
		groups: make(map[uint]bool),
	}
}

func registerAndJoin(hub *Hub, client *Client, groupID uint) {
	hub.register <- client
	hub.join <- &subscription{client: client, groupID: groupID}
}

func receive(t *testing.T, client *Client) *fanout.Event {
	t.Helper()
	select {
	case event := <-client.send:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_BroadcastToJoinedClients(t *testing.T) {
	hub := newTestHub(t)

	alice := newTestClient(hub, 1, 8)
	bob := newTestClient(hub, 2, 8)
	registerAndJoin(hub, alice, 7)
	registerAndJoin(hub, bob, 7)

	event := &fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 1, Content: "hi"}}
	hub.Broadcast(event)

	assert.Equal(t, uint(1), receive(t, alice).Message.ID)
	assert.Equal(t, uint(1), receive(t, bob).Message.ID)
}

func TestHub_NoDeliveryAcrossGroups(t *testing.T) {
	hub := newTestHub(t)

	alice := newTestClient(hub, 1, 8)
	bob := newTestClient(hub, 2, 8)
	registerAndJoin(hub, alice, 1)
	registerAndJoin(hub, bob, 2)

	hub.Broadcast(&fanout.Event{GroupID: 1, Message: fanout.MessagePayload{ID: 10}})
	hub.Broadcast(&fanout.Event{GroupID: 2, Message: fanout.MessagePayload{ID: 20}})

	assert.Equal(t, uint(10), receive(t, alice).Message.ID)
	assert.Equal(t, uint(20), receive(t, bob).Message.ID)

	// 没有串台：各自队列已空
	assert.Empty(t, alice.send)
	assert.Empty(t, bob.send)
}

func TestHub_ClientInMultipleGroups(t *testing.T) {
	hub := newTestHub(t)

	alice := newTestClient(hub, 1, 8)
	hub.register <- alice
	hub.join <- &subscription{client: alice, groupID: 1}
	hub.join <- &subscription{client: alice, groupID: 2}

	hub.Broadcast(&fanout.Event{GroupID: 1, Message: fanout.MessagePayload{ID: 10}})
	hub.Broadcast(&fanout.Event{GroupID: 2, Message: fanout.MessagePayload{ID: 20}})

	assert.Equal(t, uint(10), receive(t, alice).Message.ID)
	assert.Equal(t, uint(20), receive(t, alice).Message.ID)
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := newTestHub(t)

	alice := newTestClient(hub, 1, 8)
	registerAndJoin(hub, alice, 7)

	hub.unregister <- alice

	// 广播给已注销的客户端不会投递；send 已被 Hub 关闭
	hub.Broadcast(&fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 1}})

	select {
	case event, open := <-alice.send:
		assert.False(t, open, "send channel should be closed, got event %+v", event)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed after unregister")
	}
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	hub := newTestHub(t)

	// 缓冲为 1 的慢消费者，第二条消息时被断开
	slow := newTestClient(hub, 1, 1)
	fast := newTestClient(hub, 2, 8)
	registerAndJoin(hub, slow, 7)
	registerAndJoin(hub, fast, 7)

	hub.Broadcast(&fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 1}})
	hub.Broadcast(&fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 2}})
	hub.Broadcast(&fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 3}})

	// 快消费者收齐
	for want := uint(1); want <= 3; want++ {
		assert.Equal(t, want, receive(t, fast).Message.ID)
	}

	// 慢消费者只留下了缓冲里的第一条，随后通道被关闭
	assert.Equal(t, uint(1), receive(t, slow).Message.ID)
	select {
	case _, open := <-slow.send:
		assert.False(t, open, "slow consumer's send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("slow consumer was not dropped")
	}
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub := newTestHub(t)

	ghost := newTestClient(hub, 1, 8)
	// 未注册直接 join，应被忽略
	hub.join <- &subscription{client: ghost, groupID: 7}

	hub.Broadcast(&fanout.Event{GroupID: 7, Message: fanout.MessagePayload{ID: 1}})

	select {
	case event := <-ghost.send:
		t.Fatalf("unregistered client received event %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
