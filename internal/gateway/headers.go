// ABOUTME: Response writer that removes frame-blocking headers before they are sent
// ABOUTME: Drops X-Frame-Options and the frame-ancestors CSP directive

package gateway

import (
	"net/http"
	"strings"
)

// frameHeaderWriter strips frame-blocking headers on the first WriteHeader.
type frameHeaderWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func allowFraming(w http.ResponseWriter) *frameHeaderWriter {
	return &frameHeaderWriter{ResponseWriter: w}
}

func (w *frameHeaderWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		stripFrameHeaders(w.Header())
		// 1xx responses are followed by the real header block.
		w.wroteHeader = code >= 200
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *frameHeaderWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *frameHeaderWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// finish sends a 200 header block for handlers that returned without writing.
func (w *frameHeaderWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *frameHeaderWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func stripFrameHeaders(h http.Header) {
	h.Del("X-Frame-Options")

	policies := h.Values("Content-Security-Policy")
	if len(policies) == 0 {
		return
	}
	h.Del("Content-Security-Policy")
	for _, policy := range policies {
		if kept := withoutFrameAncestors(policy); kept != "" {
			h.Add("Content-Security-Policy", kept)
		}
	}
}

func withoutFrameAncestors(policy string) string {
	var kept []string
	for _, directive := range strings.Split(policy, ";") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		name, _, _ := strings.Cut(directive, " ")
		if strings.EqualFold(name, "frame-ancestors") {
			continue
		}
		kept = append(kept, directive)
	}
	return strings.Join(kept, "; ")
}
