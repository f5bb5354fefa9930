package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"renit/internal/metrics"
)

const streamKeepAlive = 25 * time.Second

func (s *HTTPServer) handleListReviews(w http.ResponseWriter, r *http.Request) {
	itemID, err := requiredQueryID(r, "item_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reviews, err := s.svc.Reviews.ListReviews(r.Context(), itemID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

type createReviewRequest struct {
	ItemID  int64  `json:"item_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	review, err := s.svc.Reviews.CreateReview(r.Context(), actorFromContext(r.Context()), req.ItemID, req.Rating, req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *HTTPServer) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Reviews.DeleteReview(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	itemID, err := requiredQueryID(r, "item_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	messages, err := s.svc.Messages.ListMessages(r.Context(), actorFromContext(r.Context()), itemID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type sendMessageRequest struct {
	ItemID     int64  `json:"item_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg, err := s.svc.Messages.SendMessage(r.Context(), actorFromContext(r.Context()), req.ItemID, req.ReceiverID, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleMessageStream relays live chat envelopes for an item as server-sent events.
// Only messages addressed to or sent by the caller are forwarded.
func (s *HTTPServer) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	envelopes, unsubscribe, err := s.svc.Messages.Subscribe(ctx, itemID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer unsubscribe()
	defer metrics.TrackChatStream()()

	rc := http.NewResponseController(w)
	// the stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("stream flush unsupported")
		return
	}

	actorID := actorFromContext(ctx)
	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			if env.SenderID != actorID && env.ReceiverID != actorID {
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				s.log.Error().Err(err).Int64("message_id", env.MessageID).Msg("encode chat envelope")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
