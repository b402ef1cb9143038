package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionConfig stores lifecycle timing.
type SessionConfig struct {
	// CountdownSeconds is the fixed preparation delay between connect and
	// the active interview. Not cancellable once started.
	CountdownSeconds int `yaml:"countdown_seconds"`
	// ConnectTimeoutSeconds bounds a single socket connection attempt.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
}

// AudioConfig stores capture and playback parameters.
type AudioConfig struct {
	SampleRate       int `yaml:"sample_rate"`
	CaptureBlockSize int `yaml:"capture_block_size"`
	// FlushIntervalMs is the uplink batching cadence for captured audio.
	FlushIntervalMs int `yaml:"flush_interval_ms"`
	// MaxPendingBytes triggers an early flush when the capture batch grows
	// past this size before the cadence timer fires.
	MaxPendingBytes int `yaml:"max_pending_bytes"`
}

// RecordingConfig stores composite recording parameters.
type RecordingConfig struct {
	// SegmentIntervalMs is the cadence at which accumulated composite
	// media is flushed to the recording socket.
	SegmentIntervalMs int `yaml:"segment_interval_ms"`
	// AudioBitrate is the opus target for the composite audio track.
	AudioBitrate int `yaml:"audio_bitrate"`
	VideoBitrate int `yaml:"video_bitrate"`
	// Video bounds keep recording payloads manageable.
	VideoMaxWidth  int `yaml:"video_max_width"`
	VideoMaxHeight int `yaml:"video_max_height"`
	VideoMaxFPS    int `yaml:"video_max_fps"`
}

// MonitorConfig stores channel supervision parameters.
type MonitorConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// SegmentStalenessMs is how long the recorder may go without emitting
	// a segment before recording_activity is reported as errored.
	SegmentStalenessMs int `yaml:"segment_staleness_ms"`
	// UplinkStalenessMs is how long the capture uplink may go without a
	// delivered batch, during an active session, before the AI channel is
	// reported as errored.
	UplinkStalenessMs int `yaml:"uplink_staleness_ms"`
	// ConnectAttempts bounds initial socket connection retries.
	ConnectAttempts int `yaml:"connect_attempts"`
	// ConnectBackoffBaseMs is the first retry delay; it doubles per attempt.
	ConnectBackoffBaseMs int `yaml:"connect_backoff_base_ms"`
	// NotificationDedupMs suppresses repeat error notifications for the
	// same channel state within the window.
	NotificationDedupMs int `yaml:"notification_dedup_ms"`
}

// Config stores the application configuration.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	LogLevel  string          `yaml:"log_level"`
}

// LoadConfig loads the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Session.CountdownSeconds <= 0 {
		c.Session.CountdownSeconds = 5
	}
	if c.Session.ConnectTimeoutSeconds <= 0 {
		c.Session.ConnectTimeoutSeconds = 10
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 24000
	}
	if c.Audio.CaptureBlockSize <= 0 {
		c.Audio.CaptureBlockSize = 4096
	}
	if c.Audio.FlushIntervalMs <= 0 {
		c.Audio.FlushIntervalMs = 250
	}
	if c.Audio.MaxPendingBytes <= 0 {
		c.Audio.MaxPendingBytes = 64 * 1024
	}
	if c.Recording.SegmentIntervalMs <= 0 {
		c.Recording.SegmentIntervalMs = 2000
	}
	if c.Recording.AudioBitrate <= 0 {
		c.Recording.AudioBitrate = 28000
	}
	if c.Recording.VideoBitrate <= 0 {
		c.Recording.VideoBitrate = 2_500_000
	}
	if c.Recording.VideoMaxWidth <= 0 {
		c.Recording.VideoMaxWidth = 640
	}
	if c.Recording.VideoMaxHeight <= 0 {
		c.Recording.VideoMaxHeight = 480
	}
	if c.Recording.VideoMaxFPS <= 0 {
		c.Recording.VideoMaxFPS = 30
	}
	if c.Monitor.PollIntervalMs <= 0 {
		c.Monitor.PollIntervalMs = 2000
	}
	if c.Monitor.SegmentStalenessMs <= 0 {
		c.Monitor.SegmentStalenessMs = 10000
	}
	if c.Monitor.UplinkStalenessMs <= 0 {
		c.Monitor.UplinkStalenessMs = 10000
	}
	if c.Monitor.ConnectAttempts <= 0 {
		c.Monitor.ConnectAttempts = 4
	}
	if c.Monitor.ConnectBackoffBaseMs <= 0 {
		c.Monitor.ConnectBackoffBaseMs = 500
	}
	if c.Monitor.NotificationDedupMs <= 0 {
		c.Monitor.NotificationDedupMs = 30000
	}
}

// Duration helpers so call sites don't repeat millisecond conversion.

func (c *SessionConfig) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func (c *SessionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c *AudioConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

func (c *RecordingConfig) SegmentInterval() time.Duration {
	return time.Duration(c.SegmentIntervalMs) * time.Millisecond
}

func (c *MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *MonitorConfig) SegmentStaleness() time.Duration {
	return time.Duration(c.SegmentStalenessMs) * time.Millisecond
}

func (c *MonitorConfig) UplinkStaleness() time.Duration {
	return time.Duration(c.UplinkStalenessMs) * time.Millisecond
}

func (c *MonitorConfig) ConnectBackoffBase() time.Duration {
	return time.Duration(c.ConnectBackoffBaseMs) * time.Millisecond
}

func (c *MonitorConfig) NotificationDedup() time.Duration {
	return time.Duration(c.NotificationDedupMs) * time.Millisecond
}
