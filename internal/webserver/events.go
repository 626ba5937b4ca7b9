package webserver

import (
	"fmt"
	"net/http"

	"github.com/tejzpr/formgate/internal/auth"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.deps.Broker == nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.deps.Broker.Subscribe(auth.AdminID(r.Context()))
	defer s.deps.Broker.Unsubscribe(ch)

	fmt.Fprintf(w, ": keepalive\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: response-submitted\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
