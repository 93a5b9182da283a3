package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/postphotos/purrfectcopy/internal/settings"
)

const (
	QuotePoolAuto  = "auto"
	QuotePoolStage = "stage"
	QuotePoolFacts = "facts"

	DefaultCowHoldSeconds = 7
)

// Config is the resolved runtime configuration. It is built once by Load and
// passed explicitly; Reload re-reads every source in place.
type Config struct {
	SettingsPath      string
	SlogansPath       string
	CowPath           string
	RsyncBinary       string
	TestMode          bool
	QuotePool         string
	CowHold           time.Duration
	BackupVersionsDir string
	RsyncOptions      []string
	LogLevel          string
	Slogans           Slogans

	// Warnings collects problems that did not stop loading, such as an
	// unreadable slogans file.
	Warnings []string

	opts Options
}

type Options struct {
	Fs afero.Fs
	// Flags may carry "settings" and "rsync" overrides.
	Flags *pflag.FlagSet
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are ignored.
	EnvFiles []string
}

func Load(opts Options) (*Config, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	c := &Config{opts: opts}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Fs() afero.Fs {
	return c.opts.Fs
}

func (c *Config) Reload() error {
	if len(c.opts.EnvFiles) > 0 {
		_ = godotenv.Load(c.opts.EnvFiles...)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetFs(c.opts.Fs)
	v.SetEnvPrefix("PCOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("settings_path", settings.DefaultPath())
	v.SetDefault("rsync_binary", "rsync")
	v.SetDefault("quote_pool", QuotePoolAuto)
	v.SetDefault("cow_hold_seconds", DefaultCowHoldSeconds)
	v.SetDefault("test_mode", false)
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("settings_path", "PCOPY_SETTINGS_PATH")
	_ = v.BindEnv("slogans_path", "PCOPY_SLOGANS", "PCOPY_SLOGANS_PATH")
	_ = v.BindEnv("cow_path", "PCOPY_COW_PATH")
	_ = v.BindEnv("rsync_binary", "PCOPY_RSYNC", "PCOPY_RSYNC_BINARY")
	_ = v.BindEnv("test_mode", "PCOPY_TEST_MODE")
	_ = v.BindEnv("log.level", "PCOPY_LOG_LEVEL")

	if c.opts.Flags != nil {
		if f := c.opts.Flags.Lookup("settings"); f != nil && f.Changed {
			if err := v.BindPFlag("settings_path", f); err != nil {
				return fmt.Errorf("bind settings flag: %w", err)
			}
		}
		if f := c.opts.Flags.Lookup("rsync"); f != nil && f.Changed {
			if err := v.BindPFlag("rsync_binary", f); err != nil {
				return fmt.Errorf("bind rsync flag: %w", err)
			}
		}
	}

	settingsPath := strings.TrimSpace(v.GetString("settings_path"))
	warnings := []string{}
	v.SetConfigFile(settingsPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		default:
			warnings = append(warnings, fmt.Sprintf("settings %s: %v", settingsPath, err))
		}
	}

	quotePool := strings.ToLower(strings.TrimSpace(v.GetString("quote_pool")))
	switch quotePool {
	case QuotePoolAuto, QuotePoolStage, QuotePoolFacts:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown quote_pool %q, using %s", quotePool, QuotePoolAuto))
		quotePool = QuotePoolAuto
	}
	hold := v.GetInt("cow_hold_seconds")
	if hold < 0 {
		hold = DefaultCowHoldSeconds
	}

	slogans, slogansWarning := c.loadSlogans(v)
	if slogansWarning != "" {
		warnings = append(warnings, slogansWarning)
	}

	c.SettingsPath = settingsPath
	c.SlogansPath = strings.TrimSpace(v.GetString("slogans_path"))
	c.CowPath = strings.TrimSpace(v.GetString("cow_path"))
	c.RsyncBinary = strings.TrimSpace(v.GetString("rsync_binary"))
	c.TestMode = v.GetBool("test_mode")
	c.QuotePool = quotePool
	c.CowHold = time.Duration(hold) * time.Second
	c.BackupVersionsDir = strings.TrimSpace(v.GetString(settings.KeyBackupVersionsDir))
	c.RsyncOptions = readArgList(v, settings.KeyRsyncOptions)
	c.LogLevel = v.GetString("log.level")
	c.Slogans = slogans
	c.Warnings = warnings
	return nil
}

// loadSlogans layers the embedded defaults, an optional slogans JSON file
// and per-field overrides from the settings file.
func (c *Config) loadSlogans(v *viper.Viper) (Slogans, string) {
	s := DefaultSlogans()
	warning := ""
	if path := strings.TrimSpace(v.GetString("slogans_path")); path != "" {
		data, err := afero.ReadFile(c.opts.Fs, path)
		if err == nil {
			s, err = ParseSlogans(data)
		}
		if err != nil {
			s = FallbackSlogans()
			warning = fmt.Sprintf("slogans %s: %v", path, err)
		}
	}

	for key, dst := range map[string]*[]string{
		"slogans":   &s.Slogans,
		"cat_facts": &s.CatFacts,
		"goodbyes":  &s.Goodbyes,
		"quotes":    &s.Quotes,
	} {
		if v.InConfig(key) {
			*dst = v.GetStringSlice(key)
		}
	}
	if v.InConfig("stages") {
		var stages map[string]Stage
		if err := v.UnmarshalKey("stages", &stages); err == nil && len(stages) > 0 {
			s.Stages = stages
		}
	}
	return s, warning
}

func readArgList(v *viper.Viper, key string) []string {
	raw := v.Get(key)
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(val)
	default:
		return v.GetStringSlice(key)
	}
}
