package main

import (
	"testing"
	"time"
)

func TestWSURLForSession(t *testing.T) {
	got, err := wsURLForSession("https://chat.example.com/base/", "u 1", "session_1_abc")
	if err != nil {
		t.Fatalf("wsURLForSession() error = %v", err)
	}
	want := "wss://chat.example.com/base/v1/chat/ws?sessionId=session_1_abc&userId=u+1"
	if got != want {
		t.Fatalf("wsURLForSession() = %q, want %q", got, want)
	}

	if _, err := wsURLForSession("ftp://host", "u", "s"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestParseFlagsTexts(t *testing.T) {
	cfg, err := parseFlags([]string{"-texts", " hi | |how are you ", "-turns", "3"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if len(cfg.texts) != 2 || cfg.texts[0] != "hi" || cfg.texts[1] != "how are you" {
		t.Fatalf("texts = %q", cfg.texts)
	}
	if cfg.turns != 3 {
		t.Fatalf("turns = %d, want 3", cfg.turns)
	}

	if _, err := parseFlags([]string{"-turns", "0"}); err == nil {
		t.Fatalf("expected turns error")
	}
}

func TestSummarizePercentiles(t *testing.T) {
	var lat []time.Duration
	for i := 10; i >= 1; i-- {
		lat = append(lat, time.Duration(i)*100*time.Millisecond)
	}
	got := summarize(lat)
	want := "chatperf: turns=10 p50=500ms p95=1s max=1s"
	if got != want {
		t.Fatalf("summarize() = %q, want %q", got, want)
	}
	if summarize(nil) != "chatperf: no turns recorded" {
		t.Fatalf("unexpected empty summary")
	}
}
