package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/yieldview/internal/render"
)

// ConsoleConfig holds configuration for the yieldview console and CLI.
type ConsoleConfig struct {
	BackendURL string
	AnalysisID int

	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	RequestTimeoutMS int
	CORSOrigins      []string
	LogLevel         string
	LogFile          string
	SnapshotDir      string
	ChartStylePath   string
	NtfyURL          string
	JournalDir       string

	CDPEnabled    bool
	CDPAddress    string
	CDPPort       int
	TabURLFilter  string
	EvalTimeoutMS int
}

// LoadConsole reads configuration from environment variables and an
// optional .env file.
func LoadConsole() (*ConsoleConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &ConsoleConfig{
		BackendURL:       strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://127.0.0.1:8000"), "/"),
		AnalysisID:       getEnvIntOrDefault("ANALYSIS_ID", 0),
		BindAddr:         getEnvOrDefault("YIELDVIEW_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("YIELDVIEW_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback: getEnvBoolOrDefault("YIELDVIEW_PORT_AUTO_FALLBACK", true),
		RequestTimeoutMS: getEnvIntOrDefault("YIELDVIEW_REQUEST_TIMEOUT_MS", 15000),
		CORSOrigins:      getEnvListOrDefault("YIELDVIEW_CORS_ORIGINS", []string{"http://127.0.0.1:8000", "http://localhost:8000"}),
		LogLevel:         strings.ToLower(getEnvOrDefault("YIELDVIEW_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("YIELDVIEW_LOG_FILE", "logs/yieldview.log"),
		SnapshotDir:      getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		ChartStylePath:   getEnvOrDefault("YIELDVIEW_CHART_STYLE", ""),
		NtfyURL:          getEnvOrDefault("YIELDVIEW_NTFY_URL", ""),
		JournalDir:       getEnvOrDefault("YIELDVIEW_JOURNAL_DIR", ""),
		CDPEnabled:       getEnvBoolOrDefault("CDP_ENABLED", false),
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:     getEnvOrDefault("CDP_TAB_URL_FILTER", "/yield-curves/analysis/"),
		EvalTimeoutMS:    getEnvIntOrDefault("CDP_EVAL_TIMEOUT_MS", 5000),
	}
	if cfg.RequestTimeoutMS < 1000 {
		cfg.RequestTimeoutMS = 1000
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend URL and analysis id.
func (c *ConsoleConfig) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: BACKEND_URL must be an http(s) URL, got %q", c.BackendURL)
	}
	if c.AnalysisID < 0 {
		return fmt.Errorf("config: ANALYSIS_ID must not be negative, got %d", c.AnalysisID)
	}
	return nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *ConsoleConfig) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func (c *ConsoleConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *ConsoleConfig) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

// LoadChartStyle reads a YAML style file over the built-in defaults. An
// empty path returns the defaults.
func LoadChartStyle(path string) (render.Style, error) {
	style := render.DefaultStyle()
	if path == "" {
		return style, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return render.Style{}, fmt.Errorf("config: read chart style %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return render.Style{}, fmt.Errorf("config: parse chart style %s: %w", path, err)
	}
	if _, err := style.ChartPalette(); err != nil {
		return render.Style{}, fmt.Errorf("config: chart style %s: %w", path, err)
	}
	return style.WithDefaults(), nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
