package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// File is the on-disk shape of the configuration. Durations are strings
// accepted by time.ParseDuration; pointers mark settings left unset.
type File struct {
	URL            string `json:"url"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	SessionFile    string `json:"sessionFile"`
	ProductsFile   string `json:"productsFile"`
	ScreenshotFile string `json:"screenshotFile"`

	Headless   *bool  `json:"headless"`
	ChromePath string `json:"chromePath"`
	Debug      *bool  `json:"debug"`
	LogFormat  string `json:"logFormat"`

	Timeout           string `json:"timeout"`
	ActionTimeout     string `json:"actionTimeout"`
	LoginTimeout      string `json:"loginTimeout"`
	NavigationTimeout string `json:"navigationTimeout"`
	RowWaitTimeout    string `json:"rowWaitTimeout"`
	SettleDelay       string `json:"settleDelay"`
	ScrollPause       string `json:"scrollPause"`

	BatchSize   int `json:"batchSize"`
	MaxAttempts int `json:"maxAttempts"`
	NudgeOffset int `json:"nudgeOffset"`
	MaxScrolls  int `json:"maxScrolls"`

	Pagination string `json:"pagination"`
	OnCorrupt  string `json:"onCorrupt"`

	Selectors Selectors `json:"selectors"`
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// ReadFile reads a json5 config file and merges <name>.local.<ext> over it
// when present. It returns os.ErrNotExist when neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	allNotFound := true

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		allNotFound = false
	}

	prefix, ext := splitExt(name)
	localPath := fmt.Sprintf("%s.local.%s", prefix, ext)
	localData, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localData) > 0 {
		var override File
		if err := json5.Unmarshal(localData, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ApplyFile copies every setting present in f onto cfg.
func ApplyFile(cfg *Config, f File) error {
	strs := []struct {
		src string
		dst *string
	}{
		{f.URL, &cfg.URL},
		{f.Email, &cfg.Email},
		{f.Password, &cfg.Password},
		{f.SessionFile, &cfg.SessionFile},
		{f.ProductsFile, &cfg.ProductsFile},
		{f.ScreenshotFile, &cfg.ScreenshotFile},
		{f.LogFormat, &cfg.LogFormat},
		{f.ChromePath, &cfg.ChromePath},
		{f.OnCorrupt, &cfg.OnCorrupt},
	}
	for _, s := range strs {
		if s.src != "" {
			*s.dst = s.src
		}
	}

	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"timeout", f.Timeout, &cfg.GlobalTimeout},
		{"actionTimeout", f.ActionTimeout, &cfg.ActionTimeout},
		{"loginTimeout", f.LoginTimeout, &cfg.LoginTimeout},
		{"navigationTimeout", f.NavigationTimeout, &cfg.NavigationTimeout},
		{"rowWaitTimeout", f.RowWaitTimeout, &cfg.RowWaitTimeout},
		{"settleDelay", f.SettleDelay, &cfg.SettleDelay},
		{"scrollPause", f.ScrollPause, &cfg.ScrollPause},
	}
	for _, d := range durations {
		if d.src == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		src int
		dst *int
	}{
		{f.BatchSize, &cfg.BatchSize},
		{f.MaxAttempts, &cfg.MaxAttempts},
		{f.NudgeOffset, &cfg.NudgeOffset},
		{f.MaxScrolls, &cfg.MaxScrolls},
	}
	for _, i := range ints {
		if i.src != 0 {
			*i.dst = i.src
		}
	}

	if f.Headless != nil {
		cfg.Headless = *f.Headless
	}
	if f.Debug != nil {
		cfg.Debug = *f.Debug
	}
	if f.Pagination != "" {
		cfg.Pagination = PaginationMode(f.Pagination)
	}

	return mergo.Merge(&cfg.Selectors, f.Selectors, mergo.WithOverride)
}
