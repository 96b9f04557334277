package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Frame statuses of the streaming recognition protocol.
const (
	statusFirstFrame    = 0
	statusContinueFrame = 1
	statusLastFrame     = 2
)

// PCM is uploaded in fixed-size frames with a short pacing interval, per
// the engine's streaming contract.
const (
	asrFrameSize     = 8000
	asrFrameInterval = 40 * time.Millisecond
)

// Recognizer is the websocket client for the speech-recognition engine.
// Input is normalized mono 16 kHz 16-bit PCM.
type Recognizer struct {
	cfg    *config.EngineConfig
	dialer *websocket.Dialer
}

// NewRecognizer creates a recognizer client. Missing credentials fail fast
// at construction rather than on the first answer of an interview.
func NewRecognizer(cfg *config.EngineConfig) (*Recognizer, error) {
	if cfg.AppID == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	return &Recognizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type asrFrame struct {
	Common   *asrCommon   `json:"common,omitempty"`
	Business *asrBusiness `json:"business,omitempty"`
	Data     asrData      `json:"data"`
}

type asrCommon struct {
	AppID string `json:"app_id"`
}

type asrBusiness struct {
	Domain   string `json:"domain"`
	Language string `json:"language"`
	Accent   string `json:"accent"`
	VadEOS   int    `json:"vad_eos"`
}

type asrData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Audio    string `json:"audio"`
	Encoding string `json:"encoding"`
}

type asrResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Status int `json:"status"`
		Result struct {
			WS []struct {
				CW []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// Recognize uploads the PCM stream and assembles the recognized text.
// Every failure mode lands in the result structure.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte) types.RecognitionResult {
	authURL, err := AssembleAuthURL(r.cfg.ASRURL, r.cfg.APIKey, r.cfg.APISecret, time.Now())
	if err != nil {
		return types.RecognitionResult{Success: false, Err: err.Error()}
	}

	conn, _, err := r.dialer.DialContext(ctx, authURL, nil)
	if err != nil {
		return types.RecognitionResult{Success: false, Err: fmt.Sprintf("recognition connect failed: %v", err)}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := r.sendFrames(ctx, conn, pcm); err != nil {
		return types.RecognitionResult{Success: false, Err: err.Error()}
	}

	return r.collectResult(conn)
}

// sendFrames streams the audio as first/continue/last frames.
func (r *Recognizer) sendFrames(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	status := statusFirstFrame

	for pos := 0; ; pos += asrFrameSize {
		end := pos + asrFrameSize
		if end > len(pcm) {
			end = len(pcm)
		}
		var buf []byte
		if pos < len(pcm) {
			buf = pcm[pos:end]
		}
		if len(buf) == 0 {
			status = statusLastFrame
		}

		frame := asrFrame{
			Data: asrData{
				Status:   status,
				Format:   "audio/L16;rate=16000",
				Audio:    base64.StdEncoding.EncodeToString(buf),
				Encoding: "raw",
			},
		}
		if status == statusFirstFrame {
			frame.Common = &asrCommon{AppID: r.cfg.AppID}
			frame.Business = &asrBusiness{
				Domain:   "iat",
				Language: "zh_cn",
				Accent:   "mandarin",
				VadEOS:   10000,
			}
			status = statusContinueFrame
		}

		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("recognition upload failed: %w", err)
		}
		if frame.Data.Status == statusLastFrame {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("recognition cancelled: %w", ctx.Err())
		case <-time.After(asrFrameInterval):
		}
	}
}

// collectResult reads result frames until the engine reports completion.
func (r *Recognizer) collectResult(conn *websocket.Conn) types.RecognitionResult {
	var transcript string

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// A normal close after partial results still yields the text
			// collected so far; the engine closes once it finished.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return types.RecognitionResult{Success: true, Text: transcript}
			}
			return types.RecognitionResult{Success: false, Err: fmt.Sprintf("recognition read failed: %v", err)}
		}

		var resp asrResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			log.Printf("Recognition response parse failed: %v", err)
			continue
		}
		if resp.Code != 0 {
			return types.RecognitionResult{
				Success: false,
				Err:     fmt.Sprintf("recognition error %d: %s", resp.Code, resp.Message),
			}
		}
		if resp.Data == nil {
			continue
		}

		for _, ws := range resp.Data.Result.WS {
			for _, cw := range ws.CW {
				transcript += cw.W
			}
		}
		if resp.Data.Status == statusLastFrame {
			return types.RecognitionResult{Success: true, Text: transcript}
		}
	}
}
