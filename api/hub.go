package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const (
	viewerBuffer = 4
	writeTimeout = 2 * time.Second
)

type viewer struct {
	frames  chan []byte
	dropped uint64
}

// Hub fans encoded frames out to websocket viewers. Viewers that fall behind
// lose frames instead of slowing the stream down.
type Hub struct {
	mu      sync.Mutex
	viewers map[*viewer]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		viewers: make(map[*viewer]struct{}),
		log:     log,
	}
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// WriteFrame queues data for every viewer without blocking. data must not be
// modified afterwards.
func (h *Hub) WriteFrame(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.frames <- data:
		default:
			v.dropped++
		}
	}
}

func (h *Hub) add(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams binary frames until the viewer
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	v := &viewer{frames: make(chan []byte, viewerBuffer)}
	h.add(v)
	h.log.Info().Str("remote", r.RemoteAddr).Msg("viewer connected")
	defer func() {
		h.remove(v)
		h.log.Info().Str("remote", r.RemoteAddr).Uint64("dropped", v.dropped).Msg("viewer disconnected")
	}()

	// Viewers only listen; reading is left to CloseRead.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-v.frames:
			if err := h.write(ctx, conn, data); err != nil {
				h.log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, data)
}
