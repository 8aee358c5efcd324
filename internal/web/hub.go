package web

import (
	"sync"

	"glidernav/internal/ahrs"
	"glidernav/internal/observer"
)

// Telemetry is one published sample of the fusion core.
type Telemetry struct {
	Time       string            `json:"time"`
	ElapsedSec float64           `json:"elapsed_sec"`
	AHRS       ahrs.Snapshot     `json:"ahrs"`
	Observer   observer.Snapshot `json:"observer"`
	WindNorth  float64           `json:"wind_north"`
	WindEast   float64           `json:"wind_east"`
	GNSSFix    bool              `json:"gnss_fix"`
}

// Hub fans telemetry out to any listeners (websocket clients). It keeps the
// most recent value so new subscribers get an immediate sample. A nil *Hub
// is valid and drops everything.
type Hub struct {
	mu       sync.RWMutex
	subs     map[int]chan Telemetry
	nextID   int
	last     Telemetry
	haveLast bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Telemetry)}
}

func (h *Hub) Subscribe(buffer int) (int, <-chan Telemetry) {
	if h == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan Telemetry, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	last, have := h.last, h.haveLast
	h.mu.Unlock()
	if have {
		ch <- last
	}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish never blocks: slow subscribers miss samples.
func (h *Hub) Publish(t Telemetry) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = t
	h.haveLast = true
	for _, ch := range h.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Last returns the most recent sample, if any.
func (h *Hub) Last() (Telemetry, bool) {
	if h == nil {
		return Telemetry{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.haveLast
}

func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
