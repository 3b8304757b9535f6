package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/traffic"
	"github.com/google/uuid"
)

// 客户端消息
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type watchRoutePayload struct {
	SegmentIDs []string `json:"segmentIds"`
	IntervalMs int64    `json:"intervalMs,omitempty"`
}

type watchAreaPayload struct {
	Center      geo.GeoPoint `json:"center"`
	Radius      float64      `json:"radius"`
	MinSeverity int          `json:"minSeverity,omitempty"`
	IntervalMs  int64        `json:"intervalMs,omitempty"`
}

type unwatchPayload struct {
	ID string `json:"id"`
}

// 服务端消息
type wsReply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type changePayload struct {
	ID     string         `json:"id"`
	Change traffic.Change `json:"change"`
}

// /ws/traffic：订阅路线或区域的显著路况变化
type trafficStream struct {
	model *traffic.Model
}

type wsClient struct {
	id   string
	send chan wsReply

	mu   sync.Mutex
	subs map[string]*traffic.Subscription
}

func (c *wsClient) push(r wsReply) {
	select {
	case c.send <- r:
	default:
		log.Debugf("drop message for ws client %s, buffer full", c.id)
	}
}

func (c *wsClient) cancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		sub.Cancel()
	}
	c.subs = map[string]*traffic.Subscription{}
}

func (h *trafficStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Errorf("websocket accept failed: %v", err)
		return
	}
	client := &wsClient{
		id:   uuid.NewString(),
		send: make(chan wsReply, 64),
		subs: make(map[string]*traffic.Subscription),
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer client.cancelAll()

	go h.writeLoop(ctx, conn, client)
	h.readLoop(ctx, conn, client)
}

func watchInterval(ms int64) time.Duration {
	if ms <= 0 {
		return traffic.DefaultWatchInterval
	}
	return time.Duration(ms) * time.Millisecond
}

func (h *trafficStream) readLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) {
	defer conn.Close(websocket.StatusNormalClosure, "")
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Debugf("websocket read error, client %s: %v", client.id, err)
			}
			return
		}
		switch msg.Type {
		case "watchRoute":
			var p watchRoutePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil || len(p.SegmentIDs) == 0 {
				client.push(wsReply{Type: "error", Payload: "invalid watchRoute payload"})
				continue
			}
			h.subscribe(client, func(id string) *traffic.Subscription {
				return h.model.WatchRoute(p.SegmentIDs, watchInterval(p.IntervalMs), client.notifier(id))
			})
		case "watchArea":
			var p watchAreaPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil || !p.Center.Valid() || p.Radius <= 0 {
				client.push(wsReply{Type: "error", Payload: "invalid watchArea payload"})
				continue
			}
			h.subscribe(client, func(id string) *traffic.Subscription {
				return h.model.WatchArea(p.Center, p.Radius, p.MinSeverity, watchInterval(p.IntervalMs), client.notifier(id))
			})
		case "unwatch":
			var p unwatchPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			client.mu.Lock()
			if sub, ok := client.subs[p.ID]; ok {
				sub.Cancel()
				delete(client.subs, p.ID)
			}
			client.mu.Unlock()
		case "ping":
			client.push(wsReply{Type: "pong"})
		}
	}
}

func (h *trafficStream) subscribe(client *wsClient, start func(id string) *traffic.Subscription) {
	id := uuid.NewString()
	sub := start(id)
	client.mu.Lock()
	client.subs[id] = sub
	client.mu.Unlock()
	client.push(wsReply{Type: "subscribed", Payload: unwatchPayload{ID: id}})
}

func (c *wsClient) notifier(id string) func(traffic.Change) {
	return func(change traffic.Change) {
		c.push(wsReply{Type: "change", Payload: changePayload{ID: id, Change: change}})
	}
}

func (h *trafficStream) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
