package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// ExpressionAnalyzer is the HTTP client for the facial-expression engine.
// It accepts a single JPEG frame per call.
type ExpressionAnalyzer struct {
	cfg    *config.EngineConfig
	client *http.Client
}

// NewExpressionAnalyzer creates an expression analyzer client.
func NewExpressionAnalyzer(cfg *config.EngineConfig) (*ExpressionAnalyzer, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	return &ExpressionAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type expressionResponse struct {
	Code int             `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// AnalyzeFrame posts the frame body with checksum headers and returns the
// engine's feature payload.
func (e *ExpressionAnalyzer) AnalyzeFrame(ctx context.Context, frame []byte) types.ExpressionResult {
	if len(frame) == 0 {
		return types.ExpressionResult{Success: false, Err: "frame is empty"}
	}

	param, err := json.Marshal(map[string]string{"image_name": "frame.jpg"})
	if err != nil {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression param encode failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ExpressURL, bytes.NewReader(frame))
	if err != nil {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression request build failed: %v", err)}
	}
	for key, value := range ChecksumHeaders(e.cfg.AppID, e.cfg.APIKey, string(param), time.Now()) {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression call failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression read failed: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression status %d", resp.StatusCode)}
	}

	var parsed expressionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression response parse failed: %v", err)}
	}
	if parsed.Code != 0 {
		return types.ExpressionResult{Success: false, Err: fmt.Sprintf("expression error %d: %s", parsed.Code, parsed.Desc)}
	}

	features := map[string]any{}
	if len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, &features); err != nil {
			// Some responses carry a bare value rather than an object.
			features = map[string]any{"result": string(parsed.Data)}
		}
	}
	return types.ExpressionResult{Success: true, Features: features}
}
