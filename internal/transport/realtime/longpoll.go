package realtime

import (
	"encoding/json"
	"net/http"
	"time"
)

const maxPollBatch = 100

// Poll waits up to the poll timeout for queued events and returns them as a
// JSON array, which is empty on timeout.
func (s *Server) Poll(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !c.claim(TransportLongPolling) {
		writeError(w, http.StatusConflict, "CONNECTION_IN_USE", "Connection already uses another transport")
		return
	}

	timer := time.NewTimer(s.opts.PollTimeout)
	defer timer.Stop()

	batch := make([]json.RawMessage, 0)
	select {
	case data := <-c.send:
		batch = append(batch, data)
	case <-timer.C:
	case <-c.done:
		s.disconnect(c)
		writeError(w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "Unknown or closed connection")
		return
	case <-r.Context().Done():
		return
	}

drain:
	for len(batch) < maxPollBatch {
		select {
		case data := <-c.send:
			batch = append(batch, data)
		default:
			break drain
		}
	}

	c.touch("")
	writeJSON(w, http.StatusOK, batch)
}

// Send runs one invocation for a long-polling connection and returns its
// completion in the response body.
func (s *Server) Send(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !c.claim(TransportLongPolling) {
		writeError(w, http.StatusConflict, "CONNECTION_IN_USE", "Connection already uses another transport")
		return
	}

	var evt Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, s.invoke(r.Context(), c, &evt))
}
