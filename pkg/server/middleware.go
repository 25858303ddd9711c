package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	nostrconnect "github.com/sage-x-project/nostr-connect-go"
)

// InfoMediaType is the Accept value that selects the relay information document.
const InfoMediaType = "application/nostr+json"

// Software identifies this implementation in the information document.
const Software = "https://github.com/sage-x-project/nostr-connect-go"

// RelayInfo is the NIP-11 relay information document.
type RelayInfo struct {
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	PubKey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	SupportedNIPs []int  `json:"supported_nips"`
	Software      string `json:"software,omitempty"`
	Version       string `json:"version,omitempty"`
}

// DefaultRelayInfo describes the bundled development relay.
func DefaultRelayInfo() RelayInfo {
	return RelayInfo{
		Name:          "nostr-connect dev relay",
		Description:   "In-memory relay for Nostr Connect development",
		SupportedNIPs: []int{1, 11, 16},
		Software:      Software,
		Version:       nostrconnect.Version,
	}
}

var errMethodNotAllowed = errors.New("method not allowed")

// ErrorHandler writes a response for a request the middleware refuses.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

// InfoMiddleware answers NIP-11 information requests and CORS preflights in
// front of a relay handler. Every other request reaches the relay unchanged.
type InfoMiddleware struct {
	info         RelayInfo
	errorHandler ErrorHandler
	cors         bool
}

// NewInfoMiddleware creates a middleware serving info.
func NewInfoMiddleware(info RelayInfo) *InfoMiddleware {
	if info.SupportedNIPs == nil {
		info.SupportedNIPs = []int{}
	}
	return &InfoMiddleware{
		info:         info,
		errorHandler: defaultErrorHandler,
		cors:         true,
	}
}

// SetErrorHandler sets a custom error handler
func (m *InfoMiddleware) SetErrorHandler(handler ErrorHandler) {
	m.errorHandler = handler
}

// SetCORS sets whether CORS headers are added to information responses
// and preflights are answered directly.
func (m *InfoMiddleware) SetCORS(enabled bool) {
	m.cors = enabled
}

// Info returns the served document.
func (m *InfoMiddleware) Info() RelayInfo {
	return m.info
}

// Wrap wraps a relay handler.
func (m *InfoMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && m.cors {
			m.corsHeaders(w)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !wantsInfo(r) || isUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			m.errorHandler(w, r, http.StatusMethodNotAllowed, errMethodNotAllowed)
			return
		}

		body, err := json.Marshal(m.info)
		if err != nil {
			m.errorHandler(w, r, http.StatusInternalServerError, err)
			return
		}
		if m.cors {
			m.corsHeaders(w)
		}
		w.Header().Set("Content-Type", InfoMediaType)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	})
}

func (m *InfoMiddleware) corsHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// wantsInfo reports whether any Accept entry names the information media type.
func wantsInfo(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept") {
		for _, part := range strings.Split(v, ",") {
			mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err == nil && mt == InfoMediaType {
				return true
			}
		}
	}
	return false
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// defaultErrorHandler is the default error handler
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, status int, err error) {
	http.Error(w, err.Error(), status)
}
