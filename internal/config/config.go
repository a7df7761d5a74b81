package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

type Config struct {
	StorageBackend string `mapstructure:"storage_backend" yaml:"storage_backend"`
	DBPath         string `mapstructure:"db_path" yaml:"db_path"`
	RedisAddr      string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db" yaml:"redis_db"`

	UIPort    int `mapstructure:"ui_port" yaml:"ui_port"`
	AgentPort int `mapstructure:"agent_port" yaml:"agent_port"`

	ChooserWindowMs    int `mapstructure:"chooser_window_ms" yaml:"chooser_window_ms"`
	ClipboardMaxWaitMs int `mapstructure:"clipboard_max_wait_ms" yaml:"clipboard_max_wait_ms"`
	RestoreDelayMs     int `mapstructure:"restore_delay_ms" yaml:"restore_delay_ms"`

	SaveHotkey  string `mapstructure:"save_hotkey" yaml:"save_hotkey"`
	PasteHotkey string `mapstructure:"paste_hotkey" yaml:"paste_hotkey"`
	CopyOnSave  bool   `mapstructure:"copy_on_save" yaml:"copy_on_save"`

	SendWorkers   int `mapstructure:"send_workers" yaml:"send_workers"`
	SendQueueSize int `mapstructure:"send_queue_size" yaml:"send_queue_size"`

	StatusAddr string `mapstructure:"status_addr" yaml:"status_addr"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		StorageBackend:     BackendSQLite,
		DBPath:             filepath.Join(DataDir(), "slotpaste.db"),
		RedisAddr:          "127.0.0.1:6379",
		UIPort:             45454,
		AgentPort:          45455,
		ChooserWindowMs:    3000,
		ClipboardMaxWaitMs: 300,
		RestoreDelayMs:     250,
		SaveHotkey:         "cmd+option+c",
		PasteHotkey:        "cmd+option+v",
		SendWorkers:        1,
		SendQueueSize:      64,
		LogLevel:           "info",
		LogFormat:          "text",
		LogMaxSizeMB:       10,
		LogMaxBackups:      3,
	}
}

// Load reads cfgFile, or slotpaste.yaml from the config dir or the working
// directory, over Default. SLOTPASTE_* environment variables win.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := newViper(cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("slotpaste")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogFile = expandHome(cfg.LogFile)
	return cfg, nil
}

// newViper registers every key with its default so env overrides apply to
// keys absent from the file.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SLOTPASTE")
	v.AutomaticEnv()
	for key, val := range cfg.settings() {
		v.SetDefault(key, val)
	}
	return v
}

func (c *Config) settings() map[string]any {
	return map[string]any{
		"storage_backend":       c.StorageBackend,
		"db_path":               c.DBPath,
		"redis_addr":            c.RedisAddr,
		"redis_password":        c.RedisPassword,
		"redis_db":              c.RedisDB,
		"ui_port":               c.UIPort,
		"agent_port":            c.AgentPort,
		"chooser_window_ms":     c.ChooserWindowMs,
		"clipboard_max_wait_ms": c.ClipboardMaxWaitMs,
		"restore_delay_ms":      c.RestoreDelayMs,
		"save_hotkey":           c.SaveHotkey,
		"paste_hotkey":          c.PasteHotkey,
		"copy_on_save":          c.CopyOnSave,
		"send_workers":          c.SendWorkers,
		"send_queue_size":       c.SendQueueSize,
		"status_addr":           c.StatusAddr,
		"log_level":             c.LogLevel,
		"log_format":            c.LogFormat,
		"log_file":              c.LogFile,
		"log_max_size_mb":       c.LogMaxSizeMB,
		"log_max_backups":       c.LogMaxBackups,
	}
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo writes cfg as YAML to cfgFile, or to slotpaste.yaml in the config dir.
func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	for key, val := range cfg.settings() {
		v.Set(key, val)
	}

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(ConfigDir(), "slotpaste.yaml")
		if err := os.MkdirAll(ConfigDir(), 0700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// may hold the redis password
	return os.Chmod(cfgPath, 0600)
}

func (c *Config) ChooserWindow() time.Duration {
	return time.Duration(c.ChooserWindowMs) * time.Millisecond
}

func (c *Config) ClipboardMaxWait() time.Duration {
	return time.Duration(c.ClipboardMaxWaitMs) * time.Millisecond
}

func (c *Config) RestoreDelay() time.Duration {
	return time.Duration(c.RestoreDelayMs) * time.Millisecond
}

// ConfigDir holds slotpaste.yaml.
func ConfigDir() string {
	return DataDir()
}

// DataDir holds the slot database and the instance lock.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Slotpaste")
	default:
		return filepath.Join(home, ".slotpaste")
	}
}

func expandHome(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
