// Package ws streams live market data over websockets: per-trade events
// and periodic depth snapshots.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tern/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	svc        *service.OrderService
	upgrader   websocket.Upgrader
	log        *zap.Logger
	depthEvery time.Duration
	depthLimit int
}

func NewServer(svc *service.OrderService, log *zap.Logger, depthEvery time.Duration, depthLimit int) *Server {
	return &Server{
		svc:        svc,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:        log,
		depthEvery: depthEvery,
		depthLimit: depthLimit,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/trades", s.handleTrades)
	mux.HandleFunc("/ws/book", s.handleBook)
	mux.HandleFunc("/depth", s.handleDepth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type depthSnapshot struct {
	Bids []levelJSON `json:"bids"`
	Asks []levelJSON `json:"asks"`
	Ts   int64       `json:"ts"`
}

type levelJSON struct {
	Price int64 `json:"price"`
	Count int   `json:"count"`
	Qty   int64 `json:"qty"`
}

func (s *Server) snapshot() depthSnapshot {
	bids, asks := s.svc.Depth(s.depthLimit)
	snap := depthSnapshot{Ts: time.Now().UnixNano()}
	for _, lv := range bids {
		snap.Bids = append(snap.Bids, levelJSON{Price: lv.Price, Count: lv.Count, Qty: lv.Quantity})
	}
	for _, lv := range asks {
		snap.Asks = append(snap.Asks, levelJSON{Price: lv.Price, Count: lv.Count, Qty: lv.Quantity})
	}
	return snap
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload, err := json.Marshal(s.snapshot())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(payload)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("trade stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.svc.Trades().Subscribe(64)
	defer s.svc.Trades().Unsubscribe(sub)

	done := watchClose(conn)
	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("book stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	done := watchClose(conn)
	ticker := time.NewTicker(s.depthEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			payload, err := json.Marshal(s.snapshot())
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// watchClose drains the read side so peer closes are noticed.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}
