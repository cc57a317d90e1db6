package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Platforms PlatformsConfig `yaml:"platforms"`
	Filters   FiltersConfig   `yaml:"filters"`
	TTS       TTSConfig       `yaml:"tts"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	S3        S3Config        `yaml:"s3"`
	Uploader  UploaderConfig  `yaml:"uploader"`
	API       APIConfig       `yaml:"api"`
}

// PlatformsConfig selects which chat platforms to ingest
type PlatformsConfig struct {
	Twitch  TwitchConfig  `yaml:"twitch"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Kick    KickConfig    `yaml:"kick"`
	TikTok  TikTokConfig  `yaml:"tiktok"`
}

// TwitchConfig holds Twitch-specific configuration. Username and OAuth
// are optional; without them the connection is anonymous (read-only).
type TwitchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Channel  string `yaml:"channel"`
	Username string `yaml:"username"`
	OAuth    string `yaml:"oauth"`
}

// YouTubeConfig holds YouTube live chat configuration. Video accepts a
// raw video ID or any common YouTube URL form.
type YouTubeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Video   string `yaml:"video"`
	APIKey  string `yaml:"api_key"`
}

// KickConfig holds Kick-specific configuration. ChatroomID is optional;
// when zero it is resolved from the channel slug at connect time.
type KickConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Channel    string `yaml:"channel"`
	ChatroomID int    `yaml:"chatroom_id"`
}

// TikTokConfig holds TikTok-specific configuration. SessionFile points
// at the session snapshot written by the external login flow; BridgeURL
// is the DOM-observation bridge websocket endpoint.
type TikTokConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Username    string `yaml:"username"`
	SessionFile string `yaml:"session_file"`
	BridgeURL   string `yaml:"bridge_url"`
}

// FiltersConfig controls which messages are dropped before speech
type FiltersConfig struct {
	ExcludeUsers    []string `yaml:"exclude_users"`
	ExcludeCommands *bool    `yaml:"exclude_commands"`
	ExcludeLinks    *bool    `yaml:"exclude_links"`
	OnlyMentions    bool     `yaml:"only_mentions"`
	MentionTarget   string   `yaml:"mention_target"`
}

// TTSConfig holds speech synthesis configuration
type TTSConfig struct {
	Engine           string       `yaml:"engine"` // "kokoro", "local", or "hybrid"
	AnnounceUsername *bool        `yaml:"announce_username"`
	Voice            string       `yaml:"voice"`
	HebrewVoice      string       `yaml:"hebrew_voice"`
	Volume           float64      `yaml:"volume"`
	Rate             float64      `yaml:"rate"`
	Pitch            float64      `yaml:"pitch"`
	SpeakerCommand   string       `yaml:"speaker_command"`
	PlayerCommand    string       `yaml:"player_command"`
	Kokoro           KokoroConfig `yaml:"kokoro"`
	SegmentDelayMS   int          `yaml:"segment_delay_ms"`
	ItemDelayMS      int          `yaml:"item_delay_ms"`
}

// KokoroConfig holds Kokoro TTS server configuration
type KokoroConfig struct {
	ServerURL string  `yaml:"server_url"`
	Voice     string  `yaml:"voice"`
	Speed     float64 `yaml:"speed"`
}

// BufferConfig holds message buffer configuration
type BufferConfig struct {
	Size int `yaml:"size"`
}

// RecorderConfig holds transcript recorder configuration
type RecorderConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OutputDir       string `yaml:"output_dir"`
	RotateMinutes   int    `yaml:"rotate_minutes"`
	RotateMegabytes int    `yaml:"rotate_megabytes"`
}

// S3Config holds transcript archive configuration
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// UploaderConfig holds uploader configuration
type UploaderConfig struct {
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// APIConfig holds the HTTP status/control surface configuration
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// defaultExcludedUsers are the common chat bots, filtered out unless
// the config supplies its own list.
var defaultExcludedUsers = []string{"nightbot", "moobot", "streamelements", "streamlabs", "fossabot"}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply environment variable overrides
	if oauth := os.Getenv("TWITCH_OAUTH"); oauth != "" {
		cfg.Platforms.Twitch.OAuth = oauth
	}
	if apiKey := os.Getenv("YOUTUBE_API_KEY"); apiKey != "" {
		cfg.Platforms.YouTube.APIKey = apiKey
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Filters.ExcludeUsers == nil {
		c.Filters.ExcludeUsers = defaultExcludedUsers
	}
	if c.Filters.ExcludeCommands == nil {
		c.Filters.ExcludeCommands = boolPtr(true)
	}
	if c.Filters.ExcludeLinks == nil {
		c.Filters.ExcludeLinks = boolPtr(true)
	}

	if c.TTS.Engine == "" {
		c.TTS.Engine = "hybrid"
	}
	if c.TTS.AnnounceUsername == nil {
		c.TTS.AnnounceUsername = boolPtr(true)
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = "en-us"
	}
	if c.TTS.HebrewVoice == "" {
		c.TTS.HebrewVoice = "he"
	}
	if c.TTS.SpeakerCommand == "" {
		c.TTS.SpeakerCommand = "espeak-ng -v {voice} -a {volume} -s {rate} -p {pitch} {text}"
	}
	if c.TTS.PlayerCommand == "" {
		c.TTS.PlayerCommand = "ffplay -autoexit -nodisp -loglevel quiet -"
	}
	if c.TTS.Kokoro.ServerURL == "" {
		c.TTS.Kokoro.ServerURL = "http://127.0.0.1:8880"
	}
	if c.TTS.Kokoro.Voice == "" {
		c.TTS.Kokoro.Voice = "af_bella"
	}
	if c.TTS.Kokoro.Speed == 0 {
		c.TTS.Kokoro.Speed = 1.0
	}

	if c.Platforms.TikTok.SessionFile == "" {
		c.Platforms.TikTok.SessionFile = "tiktok_session.json"
	}
	if c.Platforms.TikTok.BridgeURL == "" {
		c.Platforms.TikTok.BridgeURL = "ws://127.0.0.1:8765/feed"
	}

	if c.Buffer.Size == 0 {
		c.Buffer.Size = 100
	}
	if c.Recorder.OutputDir == "" {
		c.Recorder.OutputDir = "./transcripts"
	}
	if c.Recorder.RotateMinutes == 0 {
		c.Recorder.RotateMinutes = 60
	}
	if c.Recorder.RotateMegabytes == 0 {
		c.Recorder.RotateMegabytes = 100
	}
	if c.Uploader.MaxRetries == 0 {
		c.Uploader.MaxRetries = 3
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}

func (c *Config) validate() error {
	p := c.Platforms
	if !p.Twitch.Enabled && !p.YouTube.Enabled && !p.Kick.Enabled && !p.TikTok.Enabled {
		return fmt.Errorf("at least one platform must be enabled")
	}
	if p.Twitch.Enabled && p.Twitch.Channel == "" {
		return fmt.Errorf("platforms.twitch.channel is required")
	}
	if p.YouTube.Enabled {
		if p.YouTube.Video == "" {
			return fmt.Errorf("platforms.youtube.video is required")
		}
		if p.YouTube.APIKey == "" {
			return fmt.Errorf("platforms.youtube.api_key is required (or set YOUTUBE_API_KEY env var)")
		}
	}
	if p.Kick.Enabled && p.Kick.Channel == "" && p.Kick.ChatroomID == 0 {
		return fmt.Errorf("platforms.kick.channel or platforms.kick.chatroom_id is required")
	}
	if p.TikTok.Enabled && p.TikTok.Username == "" {
		return fmt.Errorf("platforms.tiktok.username is required")
	}

	switch c.TTS.Engine {
	case "kokoro", "local", "hybrid":
	default:
		return fmt.Errorf("tts.engine must be \"kokoro\", \"local\", or \"hybrid\" (got %q)", c.TTS.Engine)
	}

	if c.Filters.OnlyMentions && c.Filters.MentionTarget == "" {
		return fmt.Errorf("filters.mention_target is required when filters.only_mentions is set")
	}

	if c.S3.Enabled {
		if !c.Recorder.Enabled {
			return fmt.Errorf("s3 archive requires the recorder to be enabled")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required")
		}
		if c.S3.AccessKeyID != "" && c.S3.SecretAccessKey == "" {
			return fmt.Errorf("s3.secret_access_key is required when using access_key_id")
		}
	}

	return nil
}

func boolPtr(b bool) *bool { return &b }
