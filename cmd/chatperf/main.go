// Command chatperf replays scripted chat turns against a running companion
// over the websocket and reports reply latency.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/companion/internal/protocol"
)

type options struct {
	baseURL        string
	userID         string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type wsEnvelope struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Response string `json:"response,omitempty"`
}

var defaultUtterances = []string{
	"hey",
	"My name is Perf and I live in Lisbon",
	"I love long walks and jazz records",
	"What do you remember about me?",
	"Are you a bot?",
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatperf: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "chatperf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var textsRaw string
	fs := flag.NewFlagSet("chatperf", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:3000", "companion base URL")
	fs.StringVar(&cfg.userID, "user-id", "perf-replay", "userId used for the synthetic session")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.DurationVar(&cfg.interTurnDelay, "inter-turn", 200*time.Millisecond, "delay between turns")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", 45*time.Second, "timeout waiting for each chat_reply")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	cfg.interTurnDelay = max(cfg.interTurnDelay, 0)
	cfg.turnTimeout = max(cfg.turnTimeout, time.Second)

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 15 * time.Second}
	sessionID, err := startSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if cfg.verbose {
		fmt.Printf("chatperf: session=%s turns=%d\n", sessionID, cfg.turns)
	}

	wsURL, err := wsURLForSession(cfg.baseURL, cfg.userID, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	replyCh := make(chan wsEnvelope, 32)
	readErrCh := make(chan error, 1)
	go readLoop(conn, replyCh, readErrCh, cfg.verbose)

	latencies := make([]time.Duration, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		clientID := fmt.Sprintf("turn-%d", i+1)
		start := time.Now()
		if err := conn.WriteJSON(protocol.ChatMessage{Type: protocol.TypeChatMessage, Message: text, ClientID: clientID}); err != nil {
			return fmt.Errorf("turn %d send: %w", i+1, err)
		}
		reply, err := awaitReply(replyCh, readErrCh, clientID, cfg.turnTimeout)
		if err != nil {
			return fmt.Errorf("turn %d await chat_reply: %w", i+1, err)
		}
		elapsed := time.Since(start)
		latencies = append(latencies, elapsed)
		if cfg.verbose {
			fmt.Printf("chatperf: turn %d/%d %s %q -> %q\n", i+1, cfg.turns, elapsed.Round(time.Millisecond), text, reply.Response)
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	_ = conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionEndSession})

	fmt.Println(summarize(latencies))
	return nil
}

func startSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := json.Marshal(map[string]string{"userId": cfg.userID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/session/start", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out startSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing sessionId in response")
	}
	return out.SessionID, nil
}

func wsURLForSession(baseURL, userID, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/chat/ws"
	q := u.Query()
	q.Set("userId", userID)
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, replyCh chan<- wsEnvelope, readErrCh chan<- error, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case string(protocol.TypeChatReply):
			replyCh <- env
		case string(protocol.TypeErrorEvent):
			if verbose {
				fmt.Fprintf(os.Stderr, "chatperf: error_event code=%s detail=%s\n", env.Code, env.Detail)
			}
		}
	}
}

func awaitReply(replyCh <-chan wsEnvelope, readErrCh <-chan error, clientID string, timeout time.Duration) (wsEnvelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case reply := <-replyCh:
			if reply.ClientID == clientID {
				return reply, nil
			}
		case err := <-readErrCh:
			return wsEnvelope{}, err
		case <-timer.C:
			return wsEnvelope{}, fmt.Errorf("timed out after %s", timeout)
		}
	}
}

// summarize reports nearest-rank percentiles over the recorded latencies.
func summarize(latencies []time.Duration) string {
	if len(latencies) == 0 {
		return "chatperf: no turns recorded"
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	pct := func(p int) time.Duration {
		idx := (p*len(sorted) + 99) / 100
		return sorted[max(idx-1, 0)]
	}
	return fmt.Sprintf("chatperf: turns=%d p50=%s p95=%s max=%s",
		len(sorted),
		pct(50).Round(time.Millisecond),
		pct(95).Round(time.Millisecond),
		sorted[len(sorted)-1].Round(time.Millisecond),
	)
}
