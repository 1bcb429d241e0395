package whatsapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// InboundMessage is one parsed text message from the webhook payload.
type InboundMessage struct {
	From      string // sender phone, as delivered by the provider
	MessageID string
	Text      string
}

// WebhookHandler implements the Cloud API webhook surface: the GET
// verification handshake and POST message delivery. Delivery is
// acknowledged synchronously; processing happens on a goroutine because the
// provider retries anything that does not get a fast 200 (which also means
// the same message can arrive more than once).
type WebhookHandler struct {
	verifyToken string
	onMessage   func(msg InboundMessage)
	logger      *zap.Logger
}

func NewWebhookHandler(verifyToken string, onMessage func(InboundMessage), logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		onMessage:   onMessage,
		logger:      logger,
	}
}

// HandleVerification echoes the challenge when the pre-shared token matches.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// webhookEvent mirrors the slice of the Cloud API payload we consume.
type webhookEvent struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// HandleInbound acknowledges the delivery immediately and hands parsed text
// messages to the dialogue engine asynchronously.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	messages := parseEvent(event)
	if len(messages) == 0 {
		return
	}

	go func() {
		for _, msg := range messages {
			if h.onMessage != nil {
				h.onMessage(msg)
			}
		}
	}()
}

func parseEvent(event webhookEvent) []InboundMessage {
	var messages []InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				messages = append(messages, InboundMessage{
					From:      m.From,
					MessageID: m.ID,
					Text:      m.Text.Body,
				})
			}
		}
	}
	return messages
}
