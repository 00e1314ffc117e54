package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"Jakarta didirikan pada tahun 1531.", 5},
		{"one\ntwo\tthree  four", 4},
	}
	for _, tt := range tests {
		if got := CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := TruncateRunes("hello", 3); got != "hel" {
		t.Errorf("expected hel, got %q", got)
	}
	if got := TruncateRunes("東京都庁舎", 2); got != "東京" {
		t.Errorf("expected 東京, got %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestNewProxyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://id.wikipedia.org/w/api.php", nil)

	fn := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443", "")
	u, err := fn(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "secure-proxy:8443" {
		t.Errorf("expected HTTPS proxy for https request, got %s", u.Host)
	}

	plain := httptest.NewRequest(http.MethodGet, "http://localhost:11434/api/generate", nil)
	u, err = fn(plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "proxy:8080" {
		t.Errorf("expected HTTP proxy for http request, got %s", u.Host)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "", "localhost, .internal")

	for _, target := range []string{"http://localhost:11434/api/tags", "http://llm.internal/v1"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		u, err := fn(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u != nil {
			t.Errorf("expected %s to bypass proxy, got %s", target, u)
		}
	}
}
