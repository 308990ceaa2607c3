// Package api provides HTTP handlers for the hand-off gateway.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/line-handoff/internal/handoff"
	"github.com/ashureev/line-handoff/internal/line"
	"github.com/go-chi/chi/v5"
)

// scheduleMissingFieldMsg is the exact message the platform scheduler
// integration expects for a missing threshold.
const scheduleMissingFieldMsg = "Value Object: [responseTimeChatbot] is Found!"

// Handler exposes the webhook and schedule entrypoints.
type Handler struct {
	machine       *handoff.Machine
	channelSecret string
}

// NewHandler creates a new Handler.
func NewHandler(machine *handoff.Machine, channelSecret string) *Handler {
	return &Handler{
		machine:       machine,
		channelSecret: channelSecret,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// RegisterRoutes registers the gateway routes. Both entrypoints are
// registered for all methods: the platform may probe with GET and must see
// a 200, not a 405 that it would retry.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/webhook", h.Webhook)
	r.HandleFunc("/schedule", h.Schedule)
}

// Webhook receives LINE webhook deliveries. It always closes with an empty
// 200 once the signature is verified, regardless of per-event outcomes —
// non-success responses would only trigger platform redelivery storms.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Method Not Allowed"))
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify against the raw bytes as received; decoding happens after.
	if !line.VerifySignature(h.channelSecret, rawBody, r.Header.Get("x-line-signature")) {
		slog.Warn("webhook signature verification failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := line.ParseWebhookBody(rawBody)
	if err != nil {
		// Signed but malformed. Still 200: redelivery would not fix it.
		slog.Warn("failed to decode webhook body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.machine.HandleDelivery(r.Context(), body, rawBody)
	w.WriteHeader(http.StatusOK)
}

type scheduleRequest struct {
	ResponseTimeChatbot *int `json:"responseTimeChatbot"`
}

// Schedule triggers the inactivity sweep. The threshold is a caller
// obligation — its absence is a 400, never a guessed default.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Method Not Allowed"))
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ResponseTimeChatbot == nil || *req.ResponseTimeChatbot <= 0 {
		JSON(w, http.StatusBadRequest, map[string]string{"message": scheduleMissingFieldMsg})
		return
	}

	flipped, err := h.machine.Sweep(r.Context(), *req.ResponseTimeChatbot)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"message": "sweep failed"})
		return
	}

	slog.Info("sweep triggered via schedule", "threshold_minutes", *req.ResponseTimeChatbot, "flipped", flipped)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Updated"))
}
