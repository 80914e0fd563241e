package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vscribe configuration",
	Long:  "Create, view and modify ~/.config/vscribe/config.yml",
}

// vscribe config init - write defaults
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default values",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Init(); err != nil {
			fatal(err)
		}
		fmt.Printf("Saved %s\n", config.SavePath())
	},
}

// vscribe config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal(err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("# %s\n%s", configPathForDisplay(), data)
	},
}

// vscribe config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPathForDisplay())
	},
}

// vscribe config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  transcription.provider   whisper, faster-whisper, openai, openai-compatible
  transcription.model      Model name or path
  transcription.device     auto, cpu, cuda, metal
  transcription.language   Language code or auto
  transcription.models_dir Directory holding whisper.cpp models
  transcription.base_url   OpenAI-compatible server URL
  run.substrate            threads or processes (empty: per command)
  run.workers              Number of workers (0 = one per CPU core)
  run.threads              Segments in flight per worker
  run.chunk                Segment length (e.g. 5m, 90s)
  run.work_dir             Where segment files are written
  run.on_failure           omit or placeholder
  group.redis              Redis address for vscribe rank

Examples:
  vscribe config set transcription.provider faster-whisper
  vscribe config set run.workers 4
  vscribe config set run.chunk 10m`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			fatal(err)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			fatal(err)
		}
		if err := cfg.Validate(); err != nil {
			fatal(err)
		}
		if err := saveConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save config: %v\n", err)
			os.Exit(exitFatal)
		}
		fmt.Printf("Set %s = %s\n", key, value)
	},
}

// vscribe config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal(err)
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			fatal(err)
		}
		fmt.Println(value)
	},
}

func configPathForDisplay() string {
	if configFile != "" {
		return configFile
	}
	return config.SavePath()
}

func saveConfig(cfg *config.Config) error {
	if configFile != "" {
		return config.SaveTo(cfg, configFile)
	}
	return config.Save(cfg)
}

// setConfigValue sets a config value by key
func setConfigValue(cfg *config.Config, key, value string) error {
	t, r := &cfg.Transcription, &cfg.Run
	switch key {
	case "transcription.provider":
		t.Provider = value
	case "transcription.model":
		t.Model = value
	case "transcription.device":
		t.Device = value
	case "transcription.language":
		t.Language = value
	case "transcription.models_dir":
		t.ModelsDir = value
	case "transcription.base_url":
		t.BaseURL = value
	case "run.substrate":
		r.Substrate = value
	case "run.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		r.Workers = n
	case "run.threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		r.Threads = n
	case "run.chunk":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		r.Chunk = d
	case "run.work_dir":
		r.WorkDir = value
	case "run.on_failure":
		r.OnFailure = strings.ToLower(value)
	case "group.redis":
		cfg.Group.Redis = value
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'vscribe config set --help' to see supported keys", key)
	}
	return nil
}

// getConfigValue gets a config value by key
func getConfigValue(cfg *config.Config, key string) (string, error) {
	t, r := cfg.Transcription, cfg.Run
	switch key {
	case "transcription.provider":
		return t.Provider, nil
	case "transcription.model":
		return t.Model, nil
	case "transcription.device":
		return t.Device, nil
	case "transcription.language":
		return t.Language, nil
	case "transcription.models_dir":
		return t.ModelsDir, nil
	case "transcription.base_url":
		return t.BaseURL, nil
	case "run.substrate":
		return r.Substrate, nil
	case "run.workers":
		return strconv.Itoa(r.Workers), nil
	case "run.threads":
		return strconv.Itoa(r.Threads), nil
	case "run.chunk":
		return r.Chunk.String(), nil
	case "run.work_dir":
		return r.WorkDir, nil
	case "run.on_failure":
		return r.OnFailure, nil
	case "group.redis":
		return cfg.Group.Redis, nil
	default:
		return "", fmt.Errorf("unknown config key: %s\nRun 'vscribe config get --help' to see supported keys", key)
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
