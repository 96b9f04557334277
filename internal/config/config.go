package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the system-wide settings tree.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Media     *MediaConfig     `json:"media"`
	Dialogue  *DialogueConfig  `json:"dialogue"`
	Engine    *EngineConfig    `json:"engine"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// MediaConfig bounds the reassembly and transcoding path.
type MediaConfig struct {
	// MaxPendingChunks flushes a buffer once this many chunks accumulate
	// even without an explicit last-chunk marker, bounding both memory and
	// answer latency.
	MaxPendingChunks  int           `json:"max_pending_chunks"`
	MinContainerBytes int           `json:"min_container_bytes"`
	FFmpegPath        string        `json:"ffmpeg_path"`
	WorkDir           string        `json:"work_dir"`
	FrameInterval     time.Duration `json:"frame_interval"`
	QueueSize         int           `json:"queue_size"`
	ChunksPerMinute   int           `json:"chunks_per_minute"`
}

// DialogueConfig bounds the question loop.
type DialogueConfig struct {
	MaxQuestions int           `json:"max_questions"`
	CallTimeout  time.Duration `json:"call_timeout"`
}

// EngineConfig carries external AI engine endpoints and credentials.
// Credentials come from the environment only, never from config files.
type EngineConfig struct {
	AppID       string        `json:"-"`
	APIKey      string        `json:"-"`
	APISecret   string        `json:"-"`
	ASRURL      string        `json:"asr_url"`
	TTSURL      string        `json:"tts_url"`
	ExpressURL  string        `json:"express_url"`
	LLMURL      string        `json:"llm_url"`
	LLMModel    string        `json:"llm_model"`
	LLMAPIKey   string        `json:"-"`
	CallTimeout time.Duration `json:"call_timeout"`
}

// DefaultConfig returns production-ready defaults. Reassembly flushes at 5
// pending chunks and video frames are sampled every 10 seconds of media
// time, trading analysis cost against feedback freshness.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/interview.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Media: &MediaConfig{
			MaxPendingChunks:  5,
			MinContainerBytes: 128,
			FFmpegPath:        "ffmpeg",
			WorkDir:           os.TempDir(),
			FrameInterval:     10 * time.Second,
			QueueSize:         8,
			ChunksPerMinute:   600,
		},
		Dialogue: &DialogueConfig{
			MaxQuestions: 5,
			CallTimeout:  30 * time.Second,
		},
		Engine: &EngineConfig{
			ASRURL:      "wss://ws-api.xfyun.cn/v2/iat",
			TTSURL:      "wss://tts-api.xfyun.cn/v2/tts",
			ExpressURL:  "http://tupapi.xfyun.cn/v1/expression",
			LLMURL:      "https://spark-api-open.xf-yun.com/v1/chat/completions",
			LLMModel:    "generalv3.5",
			CallTimeout: 60 * time.Second,
		},
	}
}

// Validate prevents invalid system configurations from starting components.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Media == nil {
		return fmt.Errorf("media configuration is required")
	}
	if c.Media.MaxPendingChunks <= 0 {
		return fmt.Errorf("max pending chunks must be positive")
	}
	if c.Media.MinContainerBytes <= 0 {
		return fmt.Errorf("min container bytes must be positive")
	}
	if c.Media.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}
	if c.Media.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.Media.QueueSize <= 0 {
		return fmt.Errorf("media queue size must be positive")
	}
	if c.Dialogue == nil {
		return fmt.Errorf("dialogue configuration is required")
	}
	if c.Dialogue.MaxQuestions <= 0 {
		return fmt.Errorf("max questions must be positive")
	}
	if c.Dialogue.CallTimeout <= 0 {
		return fmt.Errorf("dialogue call timeout must be positive")
	}
	if c.Engine == nil {
		return fmt.Errorf("engine configuration is required")
	}
	if c.Engine.CallTimeout <= 0 {
		return fmt.Errorf("engine call timeout must be positive")
	}
	return nil
}

// LoadFromEnv builds a config from defaults overridden by environment
// variables. A .env file in the working directory is loaded first when
// present; a missing file is not an error.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	config := DefaultConfig()

	if port := os.Getenv("INTERVIEW_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("INTERVIEW_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if dbPath := os.Getenv("INTERVIEW_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if timeout := os.Getenv("INTERVIEW_DATABASE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Database.Timeout = d
		}
	}
	if interval := os.Getenv("INTERVIEW_WEBSOCKET_PING_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if pending := os.Getenv("INTERVIEW_MEDIA_MAX_PENDING_CHUNKS"); pending != "" {
		if n, err := strconv.Atoi(pending); err == nil {
			config.Media.MaxPendingChunks = n
		}
	}
	if ffmpeg := os.Getenv("INTERVIEW_FFMPEG_PATH"); ffmpeg != "" {
		config.Media.FFmpegPath = ffmpeg
	}
	if workDir := os.Getenv("INTERVIEW_MEDIA_WORK_DIR"); workDir != "" {
		config.Media.WorkDir = workDir
	}
	if interval := os.Getenv("INTERVIEW_FRAME_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Media.FrameInterval = d
		}
	}
	if maxQ := os.Getenv("INTERVIEW_MAX_QUESTIONS"); maxQ != "" {
		if n, err := strconv.Atoi(maxQ); err == nil {
			config.Dialogue.MaxQuestions = n
		}
	}
	if timeout := os.Getenv("INTERVIEW_CALL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Dialogue.CallTimeout = d
			config.Engine.CallTimeout = d
		}
	}

	// Engine credentials and endpoints.
	config.Engine.AppID = os.Getenv("XF_APP_ID")
	config.Engine.APIKey = os.Getenv("XF_APP_KEY")
	config.Engine.APISecret = os.Getenv("XF_APP_SECRET")
	config.Engine.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if url := os.Getenv("INTERVIEW_ASR_URL"); url != "" {
		config.Engine.ASRURL = url
	}
	if url := os.Getenv("INTERVIEW_TTS_URL"); url != "" {
		config.Engine.TTSURL = url
	}
	if url := os.Getenv("INTERVIEW_EXPRESS_URL"); url != "" {
		config.Engine.ExpressURL = url
	}
	if url := os.Getenv("INTERVIEW_LLM_URL"); url != "" {
		config.Engine.LLMURL = url
	}
	if model := os.Getenv("INTERVIEW_LLM_MODEL"); model != "" {
		config.Engine.LLMModel = model
	}

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Port         int    `json:"port"`
		Host         string `json:"host"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Media *struct {
		MaxPendingChunks  int    `json:"max_pending_chunks"`
		MinContainerBytes int    `json:"min_container_bytes"`
		FFmpegPath        string `json:"ffmpeg_path"`
		WorkDir           string `json:"work_dir"`
		FrameInterval     string `json:"frame_interval"`
	} `json:"media"`
	Dialogue *struct {
		MaxQuestions int    `json:"max_questions"`
		CallTimeout  string `json:"call_timeout"`
	} `json:"dialogue"`
}

// LoadFromFile overrides environment-derived settings with a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := LoadFromEnv()

	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		if d, err := time.ParseDuration(file.Database.Timeout); err == nil && d > 0 {
			config.Database.Timeout = d
		}
	}
	if file.HTTP != nil {
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if d, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil && d > 0 {
			config.HTTP.ReadTimeout = d
		}
		if d, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil && d > 0 {
			config.HTTP.WriteTimeout = d
		}
	}
	if file.Media != nil {
		if file.Media.MaxPendingChunks > 0 {
			config.Media.MaxPendingChunks = file.Media.MaxPendingChunks
		}
		if file.Media.MinContainerBytes > 0 {
			config.Media.MinContainerBytes = file.Media.MinContainerBytes
		}
		if file.Media.FFmpegPath != "" {
			config.Media.FFmpegPath = file.Media.FFmpegPath
		}
		if file.Media.WorkDir != "" {
			config.Media.WorkDir = file.Media.WorkDir
		}
		if d, err := time.ParseDuration(file.Media.FrameInterval); err == nil && d > 0 {
			config.Media.FrameInterval = d
		}
	}
	if file.Dialogue != nil {
		if file.Dialogue.MaxQuestions > 0 {
			config.Dialogue.MaxQuestions = file.Dialogue.MaxQuestions
		}
		if d, err := time.ParseDuration(file.Dialogue.CallTimeout); err == nil && d > 0 {
			config.Dialogue.CallTimeout = d
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// Load resolves configuration with precedence file > environment > defaults.
func Load(path string) *Config {
	config := LoadFromEnv()
	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}
	return config
}
