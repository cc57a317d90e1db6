package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// KokoroClient speaks through a Kokoro TTS server: one stateless POST
// per utterance returning audio bytes, played locally on completion.
type KokoroClient struct {
	serverURL  string
	voice      string
	speed      float64
	httpClient *http.Client
	player     Player
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// NewKokoroClient creates a client for a Kokoro server. speed of zero
// falls back to normal speed.
func NewKokoroClient(serverURL, voice string, speed float64, player Player) *KokoroClient {
	if speed <= 0 {
		speed = 1.0
	}
	return &KokoroClient{
		serverURL:  serverURL,
		voice:      voice,
		speed:      speed,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		player:     player,
	}
}

// Speak synthesizes text on the server and plays the returned audio.
// A context cancelled mid-request or mid-download discards the audio
// without playing it.
func (k *KokoroClient) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: k.voice, Speed: k.speed})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.serverURL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// Cancelled while the request was in flight: the audio arrived
		// but must not be played.
		return err
	}

	return k.player.Play(ctx, audio)
}
