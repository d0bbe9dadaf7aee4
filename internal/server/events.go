package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/zeusync/football/internal/core/events"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/observability/log"
)

// eventBuffer is how many events a slow SSE client may lag behind before
// further events are dropped for it.
const eventBuffer = 64

// episodeEvent is the wire form of goal and end events.
type episodeEvent struct {
	Type       string    `json:"type"`
	Instance   string    `json:"instance"`
	Episode    int       `json:"episode"`
	Step       int       `json:"step"`
	Score      [2]int    `json:"score"`
	Scorer     string    `json:"scorer,omitempty"`
	Returns    []float64 `json:"returns,omitempty"`
	Terminated bool      `json:"terminated,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
}

func toEpisodeEvent(ev bus.Event) (episodeEvent, bool) {
	switch data := ev.Data().(type) {
	case events.Goal:
		return episodeEvent{
			Type:     events.EpisodeGoal,
			Instance: data.Instance,
			Episode:  data.Episode,
			Step:     data.Step,
			Score:    data.Score,
			Scorer:   data.Scorer.String(),
		}, true
	case events.End:
		return episodeEvent{
			Type:       events.EpisodeEnd,
			Instance:   data.Instance,
			Episode:    data.Episode,
			Step:       data.Steps,
			Score:      data.Score,
			Returns:    data.Returns,
			Terminated: data.Terminated,
			Truncated:  data.Truncated,
		}, true
	}
	return episodeEvent{}, false
}

// handleEvents streams goal and end events as Server-Sent Events.
// ?instance= restricts the stream to one environment.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, r, ErrNoEventBus)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	instance := r.URL.Query().Get("instance")

	ch := make(chan episodeEvent, eventBuffer)
	var dropped atomic.Int64
	handler := func(ev bus.Event) error {
		msg, ok := toEpisodeEvent(ev)
		if !ok || (instance != "" && msg.Instance != instance) {
			return nil
		}
		select {
		case ch <- msg:
		default:
			dropped.Add(1)
		}
		return nil
	}

	var subs []bus.Subscription
	defer func() {
		for _, sub := range subs {
			_ = sub.Cancel()
		}
		if n := dropped.Load(); n > 0 {
			s.logger.Warn("Slow event client dropped events", log.Int64("dropped", n))
		}
	}()
	for _, typ := range []string{events.EpisodeGoal, events.EpisodeEnd} {
		sub, err := s.bus.Subscribe(typ, handler)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		subs = append(subs, sub)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stop := s.done()
	for {
		select {
		case msg := <-ch:
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, b); err != nil {
				return
			}
			flusher.Flush()
		case <-stop:
			return
		case <-r.Context().Done():
			return
		}
	}
}
