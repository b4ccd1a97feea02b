package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt             string `json:"prompt"`
	ContinuationPrompt string `json:"continuation_prompt"`
	Color              string `json:"color" validate:"oneof=always auto never"`
	DefaultPath        string `json:"default_path" validate:"required"`

	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=0"`

	StartupScript   string `json:"startup_script"`
	EventLog        string `json:"event_log"`
	SuggestCommands bool   `json:"suggest_commands"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewMemMapFs()
	}
	return c.configFs
}

// realPath finds a configured file on disk. Absolute paths are used as-is,
// relative ones are resolved in the config directory. An empty string is
// returned if the file has no location on disk.
func (c *Configuration) realPath(name string) string {
	switch {
	case name == "":
		return ""
	case filepath.IsAbs(name):
		return name
	}

	basePath, ok := c.fs().(*afero.BasePathFs)
	if !ok {
		return ""
	}
	out, err := basePath.RealPath(name)
	if err != nil {
		return ""
	}
	return out
}

// HistoryPath is the file interactive history is kept in, empty if history
// isn't saved.
func (c *Configuration) HistoryPath() string {
	return c.realPath(c.HistoryFile)
}

// OpenEventLog opens the event log in an append only state. It returns
// afero.ErrFileNotFound if no event log is configured.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, afero.ErrFileNotFound
	}
	if filepath.IsAbs(c.EventLog) {
		return afero.NewOsFs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, afero.ErrFileNotFound
	}
	if filepath.IsAbs(c.EventLog) {
		return afero.NewOsFs().Open(c.EventLog)
	}
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// OpenStartupScript opens the script sourced before interactive use.
func (c *Configuration) OpenStartupScript() (afero.File, error) {
	if c.StartupScript == "" {
		return nil, afero.ErrFileNotFound
	}
	if filepath.IsAbs(c.StartupScript) {
		return afero.NewOsFs().Open(c.StartupScript)
	}
	return c.fs().Open(c.StartupScript)
}

// Default returns the built in configuration backed by an in-memory
// directory. Events aren't logged since there's nowhere to keep them.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewMemMapFs()
	out.EventLog = ""
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
