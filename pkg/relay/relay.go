// Package relay forwards chat completion requests to the upstream provider
// with a server-side credential, so the browser never holds the key.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/models"
)

const maxBodyBytes = 1 << 20

// Handler is the relay endpoint.
type Handler struct {
	upstream string
	key      string
	client   *http.Client
	log      zerolog.Logger
}

// New creates a relay Handler from configuration.
func New(cfg config.RelayConfig, logger zerolog.Logger) *Handler {
	return &Handler{
		upstream: cfg.UpstreamURL,
		key:      cfg.UpstreamKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      logger.With().Str("component", "relay").Logger(),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if log.GetLevel() == zerolog.Disabled {
		log = &h.log
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if h.key == "" {
		writeError(w, http.StatusInternalServerError, "relay credential not configured", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.upstream, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid upstream", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.key)

	resp, err := h.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("relay upstream unreachable")
		writeError(w, http.StatusBadGateway, "upstream request failed", err.Error())
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to read upstream response", err.Error())
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("relay upstream error")
		writeError(w, resp.StatusCode, fmt.Sprintf("upstream returned %d", resp.StatusCode), string(respBody))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Details: details})
}
