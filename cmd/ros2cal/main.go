package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ros2cal/internal/config"
	"ros2cal/internal/ics"
	appLog "ros2cal/internal/log"
	"ros2cal/internal/ocr"
	"ros2cal/internal/roster"
)

// flagConfig holds CLI flag values before the full config is loaded.
type flagConfig struct {
	configPath   string
	icsOutput    string
	jsonOutput   string
	fromJSON     bool
	calendarName string
	localTZ      string
	debug        bool
}

func main() {
	flags, input := parseFlags()
	if flags.debug {
		appLog.SetDebug()
	}

	appLog.Info("ros2cal starting", "input", input, "from_json", flags.fromJSON)

	conf, err := config.Load(resolveConfigPath(flags.configPath))
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides beat the config file.
	if flags.calendarName != "" {
		conf.CalendarName = flags.calendarName
	}
	if flags.localTZ != "" {
		conf.Timezone = flags.localTZ
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"calendar_name", conf.CalendarName,
		"default_duration_minutes", conf.DefaultDurationMinutes,
		"ocr_model", conf.OCRModel,
		"parse_model", conf.ParseModel,
	)

	resolver, err := roster.NewResolver(conf.Timezone, conf.DefaultDuration())
	if err != nil {
		appLog.Error("invalid timezone configuration", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	payload, usage, err := loadPayload(ctx, flags, conf, input)
	if err != nil {
		appLog.Error("failed to obtain roster payload", err, "input", input)
		os.Exit(1)
	}

	doc, err := roster.Normalize(payload)
	if err != nil {
		appLog.Error("roster payload rejected", err)
		os.Exit(1)
	}

	resolved := resolver.Resolve(doc)

	if flags.jsonOutput != "" {
		if err := writeNormalizedJSON(flags.jsonOutput, resolved); err != nil {
			appLog.Error("failed to write intermediate JSON", err, "path", flags.jsonOutput)
			os.Exit(1)
		}
		appLog.Info("intermediate JSON written", "path", flags.jsonOutput)
	}

	out, warnings := ics.Export(resolved, ics.Options{
		CalendarName: conf.CalendarName,
		Timestamp:    time.Now().UTC(),
	})
	for _, w := range warnings {
		appLog.Info("export warning", "entry", w.Index, "message", w.Message)
	}

	icsPath := flags.icsOutput
	if icsPath == "" {
		icsPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".ics"
	}
	if err := writeFile(icsPath, []byte(out)); err != nil {
		appLog.Error("failed to write ICS file", err, "path", icsPath)
		os.Exit(1)
	}

	fmt.Printf("ICS saved to: %s\n", icsPath)
	if usage != nil {
		fmt.Println("OpenAI token usage:")
		fmt.Printf("- %s\n", formatUsage("OCR", usage.OCRUsage))
		fmt.Printf("- %s\n", formatUsage("Parse", usage.ParseUsage))
	}
}

// loadPayload produces the raw roster JSON either from a previously
// saved payload (-from-json) or by running the OCR+parse pipeline on
// the image. The returned result is nil in the former case.
func loadPayload(ctx context.Context, flags flagConfig, conf *config.Config, input string) ([]byte, *ocr.Result, error) {
	if flags.fromJSON {
		data, err := os.ReadFile(input)
		return data, nil, err
	}

	image, err := os.ReadFile(input)
	if err != nil {
		return nil, nil, err
	}

	client := ocr.NewClient(config.APIKey(), conf.OCRModel, conf.ParseModel)
	result, err := client.ParseImage(ctx, image)
	if err != nil {
		return nil, nil, err
	}
	return result.Payload, &result, nil
}

func writeNormalizedJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func formatUsage(label string, u ocr.Usage) string {
	cachedFlag := "normal"
	if u.CachedInputTokens > 0 {
		cachedFlag = "cached"
	}
	return fmt.Sprintf("%s: input=%d (cached=%d, %s), output=%d, total=%d",
		label, u.InputTokens, u.CachedInputTokens, cachedFlag, u.OutputTokens, u.EffectiveTotal())
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(base, "ros2cal", "config.yaml")
}

func parseFlags() (flagConfig, string) {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to config file (default: user config dir)")
	flag.StringVar(&cfg.icsOutput, "o", "", "Where to write the resulting .ics file (defaults to <input>.ics)")
	flag.StringVar(&cfg.jsonOutput, "json-output", "", "Optional path to save the normalized intermediate JSON")
	flag.BoolVar(&cfg.fromJSON, "from-json", false, "Treat the input as a saved roster JSON payload; skip the OCR calls")
	flag.StringVar(&cfg.calendarName, "calendar-name", "", "Calendar display name (overrides config if set)")
	flag.StringVar(&cfg.localTZ, "local-tz", "", "IANA timezone for local time strings (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ros2cal [flags] <roster-image|roster-json>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	return cfg, flag.Arg(0)
}
