package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultAPIURL         = "https://686e5bffc9090c4953895434.mockapi.io/api/v1/tasks"
	DefaultLogFile        = "smarttodo.log"
	DefaultDBName         = "tasks.db"
)

type Keymap struct {
	Quit      string `toml:"quit"`
	Add       string `toml:"add"`
	Up        string `toml:"up"`
	Down      string `toml:"down"`
	Toggle    string `toml:"toggle"`
	Delete    string `toml:"delete"`
	Edit      string `toml:"edit"`
	Confirm   string `toml:"confirm"`
	Cancel    string `toml:"cancel"`
	NextTab   string `toml:"next_tab"`
	NextField string `toml:"next_field"`
	Refresh   string `toml:"refresh"`
}

type Validation struct {
	Required        []string `toml:"required"`
	RequireDeadline bool     `toml:"require_deadline"`
}

type Log struct {
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
	Path     string `toml:"path"`
}

type Server struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`
	Prefix string `toml:"prefix"`
}

type Config struct {
	APIURL         string     `toml:"api_url"`
	RequestTimeout Duration   `toml:"request_timeout"`
	TickInterval   Duration   `toml:"tick_interval"`
	DefaultTab     string     `toml:"default_tab"`
	Validation     Validation `toml:"validation"`
	Log            Log        `toml:"log"`
	Server         Server     `toml:"server"`
	Keys           Keymap     `toml:"keys"`
}

// Duration is a time.Duration stored as a string such as "15s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ResolveConfigPath prefers $XDG_CONFIG_HOME/smarttodo (or the OS config
// dir) and falls back to the working directory.
func ResolveConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "smarttodo", DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults first when the
// file does not exist. A relative log path is taken relative to the config
// file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		cfg.resolveLogPath(path)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	cfg.resolveLogPath(path)
	return cfg, nil
}

func (c *Config) resolveLogPath(configPath string) {
	if c.Log.Path == "" || filepath.IsAbs(c.Log.Path) {
		return
	}
	dir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return
	}
	c.Log.Path = filepath.Join(dir, c.Log.Path)
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) fillDefaults() {
	def := defaultConfig()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.DefaultTab == "" {
		c.DefaultTab = def.DefaultTab
	}
	if c.Validation.Required == nil {
		c.Validation.Required = def.Validation.Required
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = def.Server.DBPath
	}
	if c.Server.Prefix == "" {
		c.Server.Prefix = def.Server.Prefix
	}
	fillKey(&c.Keys.Quit, def.Keys.Quit)
	fillKey(&c.Keys.Add, def.Keys.Add)
	fillKey(&c.Keys.Up, def.Keys.Up)
	fillKey(&c.Keys.Down, def.Keys.Down)
	fillKey(&c.Keys.Toggle, def.Keys.Toggle)
	fillKey(&c.Keys.Delete, def.Keys.Delete)
	fillKey(&c.Keys.Edit, def.Keys.Edit)
	fillKey(&c.Keys.Confirm, def.Keys.Confirm)
	fillKey(&c.Keys.Cancel, def.Keys.Cancel)
	fillKey(&c.Keys.NextTab, def.Keys.NextTab)
	fillKey(&c.Keys.NextField, def.Keys.NextField)
	fillKey(&c.Keys.Refresh, def.Keys.Refresh)
}

func fillKey(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		RequestTimeout: Duration(15 * time.Second),
		TickInterval:   Duration(time.Minute),
		DefaultTab:     "ongoing",
		Validation: Validation{
			Required: []string{"title"},
		},
		Log: Log{
			Level:    "info",
			Encoding: "json",
			Path:     DefaultLogFile,
		},
		Server: Server{
			Addr:   ":8080",
			DBPath: DefaultDBName,
			Prefix: "/api/v1",
		},
		Keys: Keymap{
			Quit:      "q",
			Add:       "a",
			Up:        "k",
			Down:      "j",
			Toggle:    " ",
			Delete:    "d",
			Edit:      "e",
			Confirm:   "enter",
			Cancel:    "esc",
			NextTab:   "tab",
			NextField: "tab",
			Refresh:   "r",
		},
	}
}
