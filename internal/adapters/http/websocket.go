package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/fuelroute/internal/adapters/nats"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to event channels.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "plans" | "catalogue" (default: plans)
}

var wsChannels = map[string]string{
	"plans":     natsadapter.SubjectPlanComputed,
	"catalogue": natsadapter.SubjectCatalogueUpdated,
}

// WebSocketHandler returns a handler that relays service events from NATS to
// connected clients. Clients start subscribed to plans and send
// {"action":"subscribe","channel":"catalogue"} to add a channel.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		if nc == nil {
			_ = c.WriteJSON(map[string]string{"error": "event stream not configured"})
			return
		}

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // channel -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		relay := func(channel string) (*nats.Subscription, error) {
			return nc.Subscribe(wsChannels[channel], func(msg *nats.Msg) {
				_ = writeJSON(map[string]any{
					"channel": channel,
					"event":   json.RawMessage(msg.Data),
				})
			})
		}

		sub, err := relay("plans")
		if err != nil {
			slog.Error("ws default subscribe", "error", err)
			return
		}
		subs["plans"] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			channel := m.Channel
			if channel == "" {
				channel = "plans"
			}
			if _, known := wsChannels[channel]; !known {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[channel]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "channel": channel})
					continue
				}
				s, err := relay(channel)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[channel] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": channel})

			case "unsubscribe":
				if s, exists := subs[channel]; exists {
					_ = s.Unsubscribe()
					delete(subs, channel)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": channel})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + channel})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
