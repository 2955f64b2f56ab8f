package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"solverd/internal/config"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := defaultConfig()
	var cfgFile string

	root := &cobra.Command{
		Use:           "solverd",
		Short:         "Local math-solver daemon with on-device inference and heuristic fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address, e.g. :8080")
	root.PersistentFlags().StringVar(&cfg.ModelsDir, "models-dir", cfg.ModelsDir, "Directory to scan for *.gguf model files")
	root.PersistentFlags().StringVar(&cfg.DefaultModel, "default-model", cfg.DefaultModel, "Default model id when request omits model")
	root.PersistentFlags().IntVar(&cfg.ContextSize, "context-size", cfg.ContextSize, "Model context window in tokens")
	root.PersistentFlags().IntVar(&cfg.Threads, "threads", cfg.Threads, "Inference threads (0 = runtime default)")
	root.PersistentFlags().StringVar(&cfg.ComputeUnits, "compute-units", cfg.ComputeUnits, "Compute units: cpu_only|cpu_and_gpu|cpu_and_npu|all")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	var corsOrigins string
	root.PersistentFlags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			fileCfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			mergeFlags(cmd, &fileCfg, cfg)
			*cfg = fileCfg
		}
		if origins := splitCSV(corsOrigins); len(origins) > 0 {
			cfg.CORSEnabled = true
			cfg.CORSOrigins = origins
		}
		applyDefaults(cfg)
		return nil
	}

	root.AddCommand(buildServeCmd(cfg), buildSolveCmd(cfg))
	return root
}

func defaultConfig() *config.Config {
	cfg := &config.Config{
		Addr:         ":8080",
		ModelsDir:    "~/models/llm",
		ContextSize:  4096,
		LogLevel:     "info",
		DiagCapacity: 64,
	}
	if v := os.Getenv("SOLVERD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SOLVERD_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("SOLVERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// applyDefaults fills fields a config file may have left unset.
func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/models/llm"
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = 4096
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DiagCapacity <= 0 {
		cfg.DiagCapacity = 64
	}
}

// mergeFlags lets explicitly-set flags win over the config file.
func mergeFlags(cmd *cobra.Command, fileCfg, flagCfg *config.Config) {
	f := cmd.Root().PersistentFlags()
	if f.Changed("addr") {
		fileCfg.Addr = flagCfg.Addr
	}
	if f.Changed("models-dir") {
		fileCfg.ModelsDir = flagCfg.ModelsDir
	}
	if f.Changed("default-model") {
		fileCfg.DefaultModel = flagCfg.DefaultModel
	}
	if f.Changed("context-size") {
		fileCfg.ContextSize = flagCfg.ContextSize
	}
	if f.Changed("threads") {
		fileCfg.Threads = flagCfg.Threads
	}
	if f.Changed("compute-units") {
		fileCfg.ComputeUnits = flagCfg.ComputeUnits
	}
	if f.Changed("log-level") {
		fileCfg.LogLevel = flagCfg.LogLevel
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
