package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Synthesizer is the websocket client for the text-to-speech engine.
// Output is an MP3 stream suitable for direct playback in the client.
type Synthesizer struct {
	cfg    *config.EngineConfig
	dialer *websocket.Dialer
}

// NewSynthesizer creates a synthesizer client.
func NewSynthesizer(cfg *config.EngineConfig) (*Synthesizer, error) {
	if cfg.AppID == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	return &Synthesizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type ttsRequest struct {
	Common   ttsCommon   `json:"common"`
	Business ttsBusiness `json:"business"`
	Data     ttsText     `json:"data"`
}

type ttsCommon struct {
	AppID string `json:"app_id"`
}

type ttsBusiness struct {
	AUE   string `json:"aue"`
	AUF   string `json:"auf"`
	VCN   string `json:"vcn"`
	TTE   string `json:"tte"`
	SFL   int    `json:"sfl"`
	Speed int    `json:"speed"`
}

type ttsText struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

type ttsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
	} `json:"data"`
}

// Synthesize sends the full text in one request and assembles the audio
// frames the engine streams back.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) types.SynthesisResult {
	if text == "" {
		return types.SynthesisResult{Success: false, Err: "synthesis text is empty"}
	}

	authURL, err := AssembleAuthURL(s.cfg.TTSURL, s.cfg.APIKey, s.cfg.APISecret, time.Now())
	if err != nil {
		return types.SynthesisResult{Success: false, Err: err.Error()}
	}

	conn, _, err := s.dialer.DialContext(ctx, authURL, nil)
	if err != nil {
		return types.SynthesisResult{Success: false, Err: fmt.Sprintf("synthesis connect failed: %v", err)}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	req := ttsRequest{
		Common: ttsCommon{AppID: s.cfg.AppID},
		Business: ttsBusiness{
			AUE:   "lame",
			AUF:   "audio/L16;rate=16000",
			VCN:   "x4_yezi",
			TTE:   "utf8",
			SFL:   1,
			Speed: 50,
		},
		Data: ttsText{
			Status: statusLastFrame,
			Text:   base64.StdEncoding.EncodeToString([]byte(text)),
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return types.SynthesisResult{Success: false, Err: fmt.Sprintf("synthesis request failed: %v", err)}
	}

	var audio []byte
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return types.SynthesisResult{Success: false, Err: fmt.Sprintf("synthesis read failed: %v", err)}
		}

		var resp ttsResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			return types.SynthesisResult{Success: false, Err: fmt.Sprintf("synthesis response parse failed: %v", err)}
		}
		if resp.Code != 0 {
			return types.SynthesisResult{
				Success: false,
				Err:     fmt.Sprintf("synthesis error %d: %s", resp.Code, resp.Message),
			}
		}
		if resp.Data == nil {
			continue
		}

		chunk, err := base64.StdEncoding.DecodeString(resp.Data.Audio)
		if err != nil {
			return types.SynthesisResult{Success: false, Err: fmt.Sprintf("synthesis audio decode failed: %v", err)}
		}
		audio = append(audio, chunk...)

		if resp.Data.Status == statusLastFrame {
			return types.SynthesisResult{Success: true, Audio: audio}
		}
	}
}
