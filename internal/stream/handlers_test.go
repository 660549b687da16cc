package stream

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

func TestEncoderArgsUseOutputFormat(t *testing.T) {
	args := encoderArgs()
	for _, pair := range [][2]string{{"-ar", "44100"}, {"-ac", "2"}, {"-f", "s16le"}} {
		i := slices.Index(args, pair[0])
		if i < 0 || i+1 >= len(args) || args[i+1] != pair[1] {
			t.Errorf("encoder args %v missing %s %s", args, pair[0], pair[1])
		}
	}
}

func TestHTTPHandlerMethods(t *testing.T) {
	h := NewHTTPHandler(NewBroadcaster(), "voice-left.wav")

	req := httptest.NewRequest(http.MethodHead, "/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD /stream = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if got := rec.Header().Get("ICY-Name"); got != "voice-left.wav" {
		t.Errorf("ICY-Name = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/stream", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /stream = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q", got)
	}
}

func TestWebRTCHandlerMethods(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster(), 128000)

	tests := []struct {
		method string
		body   string
		want   int
	}{
		{http.MethodOptions, "", http.StatusOK},
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/offer", strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s /offer = %d, want %d", tt.method, rec.Code, tt.want)
		}
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}
