// ABOUTME: Entry point for barista-gateway
// ABOUTME: Bridges robot MQTT topics, browser WebSocket sessions and a language model

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _                _     _
 | |__   __ _ _ __(_)___| |_ __ _
 | '_ \ / _' | '__| / __| __/ _' |
 | |_) | (_| | |  | \__ \ || (_| |
 |_.__/ \__,_|_|  |_|___/\__\__,_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: BARISTA_CONFIG env var > XDG_CONFIG_HOME/barista/gateway.yaml > ~/.config/barista/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BARISTA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "barista", "gateway.yaml")
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: barista-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		fmt.Println("  robots   Show the default robot and session assignments")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "robots":
		err = runRobots(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, found, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s", configPath)
	if !found {
		yellow.Print(" [missing, using defaults]")
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Broker:    %s:%d", cfg.MQTT.Broker, cfg.MQTT.Port)
	if cfg.MQTT.TLSEnabled() {
		yellow.Print(" [tls]")
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s/%s\n", cfg.Model.Provider, cfg.Model.Name)
	green.Print("    ▶ ")
	fmt.Printf("Robot:     %s\n", cfg.Robots.DefaultID)
	if cfg.Speech.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Speech:    %s\n", cfg.Speech.URL)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:    %s\n", cfg.Database.Path)
	}

	fmt.Println()

	logger.Info("starting barista-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"broker", cfg.MQTT.Broker,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			mu:    &sync.Mutex{},
			out:   os.Stdout,
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output. Handlers derived through
// WithAttrs share the parent's mutex so lines never interleave.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	write := func(key string, v slog.Value) {
		buf.WriteString(color.HiBlackString(" " + key + "="))
		buf.WriteString(v.String())
	}

	// Handler attrs already carry their group prefix.
	for _, a := range h.attrs {
		write(a.Key, a.Value)
	}
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		write(prefix+a.Key, a.Value)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := h.groupPrefix()
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// getJSON fetches path from the running gateway and returns the body.
func getJSON(ctx context.Context, path string) ([]byte, int, error) {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return nil, 0, err
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "127.0.0.1:" + strings.TrimPrefix(addr, "0.0.0.0:")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", addr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func runHealth(ctx context.Context) error {
	body, status, err := getJSON(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", status)
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runRobots(ctx context.Context) error {
	body, status, err := getJSON(ctx, "/robot")
	if err != nil {
		return fmt.Errorf("robot query failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("robot query failed: status %d", status)
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("barista-gateway configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server ---")
	httpAddr := prompt(reader, "HTTP address", "0.0.0.0:8000")

	fmt.Println("\n--- MQTT ---")
	broker := prompt(reader, "Broker host", "broker.emqx.io")
	port := prompt(reader, "Broker port", "1883")
	robotID := prompt(reader, "Default robot id", "wro1")

	fmt.Println("\n--- Model ---")
	provider := prompt(reader, "Provider (openai/anthropic)", "openai")
	defaultModel := "gpt-4.1-nano"
	keyVar := "OPENAI_API_KEY"
	if provider == "anthropic" {
		defaultModel = "claude-3-5-haiku-latest"
		keyVar = "ANTHROPIC_API_KEY"
	}
	modelName := prompt(reader, "Model name", defaultModel)

	fmt.Println("\n--- Speech ---")
	speechURL := prompt(reader, "Speech service URL (leave empty to disable)", "")

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# barista-gateway configuration\n")
	cfg.WriteString("# Generated by barista-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n\n", httpAddr))

	cfg.WriteString("mqtt:\n")
	cfg.WriteString(fmt.Sprintf("  broker: \"%s\"\n", broker))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", port))
	cfg.WriteString("  action_topic: \"robot/events\"\n")
	cfg.WriteString("  reply_topic: \"robot/reply\"\n")
	cfg.WriteString("  notify_topics: [\"robot/notify\"]\n\n")

	cfg.WriteString("robots:\n")
	cfg.WriteString(fmt.Sprintf("  default_id: \"%s\"\n\n", robotID))

	cfg.WriteString("model:\n")
	cfg.WriteString(fmt.Sprintf("  provider: \"%s\"\n", provider))
	cfg.WriteString(fmt.Sprintf("  name: \"%s\"\n", modelName))
	cfg.WriteString(fmt.Sprintf("  api_key: \"${%s}\"\n\n", keyVar))

	cfg.WriteString("speech:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", speechURL != ""))
	if speechURL != "" {
		cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", speechURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the gateway:")
	fmt.Printf("  barista-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
