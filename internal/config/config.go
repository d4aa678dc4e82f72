package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDeviceKeywords are matched case-insensitively as substrings of detection labels.
var DefaultDeviceKeywords = []string{
	"cell phone",
	"mobile phone",
	"phone",
	"laptop",
	"book",
	"tablet",
	"keyboard",
	"mouse",
}

type Config struct {
	// Detector
	ModelPath           string
	ModelConfigPath     string // only used by Darknet/Caffe/TF models
	DetectorBackend     string // "opencv" or "onnxruntime"
	OnnxLibraryPath     string
	InputWidth          int
	ConfidenceThreshold float64
	NMSThreshold        float64
	ClassNames          map[int]string

	// Frame classification policy
	PersonLabel          string
	MultiPersonThreshold int
	DeviceKeywords       []string

	// Sources
	MaxFrames      int
	CameraIndex    int
	FFmpegPath     string
	ExtractFPS     int
	ExtractTimeout time.Duration
	ScratchDir     string

	// Remote recordings (s3://bucket/key)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Stream mode surface
	ListenAddr  string
	ViewerToken string // required from viewers when set
	Display     bool

	// Violation snapshots saved during stream mode
	EvidenceDirectory     string
	EvidenceLimit         int
	EvidenceFlushInterval time.Duration

	LogDirectory string
	Quiet        bool
}

// File is the optional YAML overlay. Zero values leave the environment-derived setting alone.
type File struct {
	Detector struct {
		Model               string         `yaml:"model"`
		ModelConfig         string         `yaml:"model_config"`
		Backend             string         `yaml:"backend"`
		OnnxLibrary         string         `yaml:"onnx_library"`
		InputWidth          int            `yaml:"input_width"`
		ConfidenceThreshold float64        `yaml:"confidence_threshold"`
		NMSThreshold        float64        `yaml:"nms_threshold"`
		Classes             map[int]string `yaml:"classes"`
	} `yaml:"detector"`
	Policy struct {
		PersonLabel          string   `yaml:"person_label"`
		MultiPersonThreshold int      `yaml:"multi_person_threshold"`
		DeviceKeywords       []string `yaml:"device_keywords"`
	} `yaml:"policy"`
	Source struct {
		MaxFrames      int    `yaml:"max_frames"`
		Camera         *int   `yaml:"camera"`
		FFmpeg         string `yaml:"ffmpeg"`
		ExtractFPS     int    `yaml:"extract_fps"`
		ExtractTimeout string `yaml:"extract_timeout"`
		ScratchDir     string `yaml:"scratch_dir"`
	} `yaml:"source"`
	Evidence struct {
		Dir           string `yaml:"dir"`
		Limit         int    `yaml:"limit"`
		FlushInterval string `yaml:"flush_interval"`
	} `yaml:"evidence"`
	Listen string `yaml:"listen"`
}

func Load() *Config {
	return &Config{
		ModelPath:             getEnv("MODEL_PATH", "yolov8n.onnx"),
		ModelConfigPath:       getEnv("MODEL_CONFIG_PATH", ""),
		DetectorBackend:       getEnv("DETECTOR_BACKEND", "opencv"),
		OnnxLibraryPath:       getEnv("ONNXRUNTIME_SHARED_LIBRARY_PATH", ""),
		InputWidth:            getEnvAsInt("INPUT_WIDTH", 640),
		ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.3), // favour recall over precision
		NMSThreshold:          getEnvAsFloat("NMS_THRESHOLD", 0.45),
		PersonLabel:           getEnv("PERSON_LABEL", "person"),
		MultiPersonThreshold:  getEnvAsInt("MULTI_PERSON_THRESHOLD", 1),
		DeviceKeywords:        getEnvAsList("DEVICE_KEYWORDS", DefaultDeviceKeywords),
		MaxFrames:             getEnvAsInt("MAX_FRAMES", 8),
		CameraIndex:           getEnvAsInt("CAMERA_INDEX", 0),
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		ExtractFPS:            getEnvAsInt("EXTRACT_FPS", 1),
		ExtractTimeout:        getEnvAsDuration("EXTRACT_TIMEOUT", 30*time.Second),
		ScratchDir:            getEnv("SCRATCH_DIR", os.TempDir()),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:              getEnvAsBool("S3_USE_SSL", true),
		ListenAddr:            getEnv("LISTEN_ADDR", ""),
		ViewerToken:           getEnv("VIEWER_TOKEN", ""),
		Display:               getEnvAsBool("DISPLAY_WINDOW", false),
		EvidenceDirectory:     getEnv("EVIDENCE_DIR", ""),
		EvidenceLimit:         getEnvAsInt("EVIDENCE_LIMIT", 10),
		EvidenceFlushInterval: getEnvAsDuration("EVIDENCE_FLUSH_INTERVAL", 30*time.Second),
		LogDirectory:          getEnv("LOG_DIR", ""),
	}
}

// LoadFile applies the YAML overlay at path on top of cfg. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return c.apply(&f)
}

func (c *Config) apply(f *File) error {
	d := f.Detector
	setString(&c.ModelPath, d.Model)
	setString(&c.ModelConfigPath, d.ModelConfig)
	setString(&c.DetectorBackend, d.Backend)
	setString(&c.OnnxLibraryPath, d.OnnxLibrary)
	setInt(&c.InputWidth, d.InputWidth)
	if d.ConfidenceThreshold > 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if d.NMSThreshold > 0 {
		c.NMSThreshold = d.NMSThreshold
	}
	if len(d.Classes) > 0 {
		c.ClassNames = d.Classes
	}

	p := f.Policy
	setString(&c.PersonLabel, p.PersonLabel)
	setInt(&c.MultiPersonThreshold, p.MultiPersonThreshold)
	if len(p.DeviceKeywords) > 0 {
		c.DeviceKeywords = p.DeviceKeywords
	}

	s := f.Source
	setInt(&c.MaxFrames, s.MaxFrames)
	if s.Camera != nil {
		c.CameraIndex = *s.Camera
	}
	setString(&c.FFmpegPath, s.FFmpeg)
	setInt(&c.ExtractFPS, s.ExtractFPS)
	if s.ExtractTimeout != "" {
		timeout, err := time.ParseDuration(s.ExtractTimeout)
		if err != nil {
			return fmt.Errorf("source.extract_timeout: %w", err)
		}
		c.ExtractTimeout = timeout
	}
	setString(&c.ScratchDir, s.ScratchDir)
	setString(&c.ListenAddr, f.Listen)

	e := f.Evidence
	setString(&c.EvidenceDirectory, e.Dir)
	setInt(&c.EvidenceLimit, e.Limit)
	if e.FlushInterval != "" {
		interval, err := time.ParseDuration(e.FlushInterval)
		if err != nil {
			return fmt.Errorf("evidence.flush_interval: %w", err)
		}
		c.EvidenceFlushInterval = interval
	}

	return c.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.DetectorBackend {
	case "opencv", "onnxruntime":
	default:
		return fmt.Errorf("unknown detector backend %q", c.DetectorBackend)
	}
	if c.InputWidth <= 0 {
		return fmt.Errorf("input width must be positive, got %d", c.InputWidth)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("max frames must be positive, got %d", c.MaxFrames)
	}
	if c.ExtractFPS <= 0 {
		return fmt.Errorf("extract fps must be positive, got %d", c.ExtractFPS)
	}
	if c.EvidenceDirectory != "" && (c.EvidenceLimit <= 0 || c.EvidenceFlushInterval <= 0) {
		return fmt.Errorf("evidence limit and flush interval must be positive")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
