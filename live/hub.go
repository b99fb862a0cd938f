package live

import (
	"encoding/json"
	"log"
	"sync"

	"socialgraph/models"
)

// TopicAll receives every event.
const TopicAll = "all"

type Client struct {
	Send  chan []byte
	Topic string
}

type broadcastMsg struct {
	Topic string
	Data  []byte
}

// Hub fans graph events out to websocket clients grouped by topic. A topic is
// "all", "user:<id>" or "post:<id>".
type Hub struct {
	topics     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			if h.topics[c.Topic] == nil {
				h.topics[c.Topic] = make(map[*Client]bool)
			}
			h.topics[c.Topic][c] = true

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.broadcast:
			for c := range h.topics[m.Topic] {
				select {
				case c.Send <- m.Data:
				default:
					// slow consumer
					h.drop(c)
				}
			}

		case <-h.quit:
			for _, clients := range h.topics {
				for c := range clients {
					close(c.Send)
				}
			}
			h.topics = nil
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	clients := h.topics[c.Topic]
	if !clients[c] {
		return
	}
	delete(clients, c)
	close(c.Send)
	if len(clients) == 0 {
		delete(h.topics, c.Topic)
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Broadcast delivers ev to every topic it concerns.
func (h *Hub) Broadcast(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Live] marshal event: %v", err)
		return
	}
	for _, topic := range Topics(ev) {
		select {
		case h.broadcast <- broadcastMsg{Topic: topic, Data: data}:
		case <-h.quit:
			return
		}
	}
}

// Topics lists the topics an event is published on.
func Topics(ev models.Event) []string {
	topics := []string{TopicAll, "user:" + ev.Actor}
	target := string(ev.TargetKind) + ":" + ev.Target
	if target != topics[1] {
		topics = append(topics, target)
	}
	return topics
}
