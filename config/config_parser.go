// Package config for config details
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/hashicorp/go-envparse"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"
)

// Configuration struct to hold app configurations
type Configuration struct {
	APIURL       string `validate:"nonzero"`
	NodeDir      string `validate:"nonzero"`
	ListenAddr   string `validate:"nonzero"`
	Ports        string `validate:"nonzero"`
	Layout       string `validate:"nonzero"`
	ForceRebuild bool
	NodeRPCURL   string `validate:"nonzero"`
	SessionFile  string `validate:"nonzero"`

	FetchTimeout     time.Duration
	DownloadTimeout  time.Duration
	AuthorityTimeout time.Duration
	BuildTimeout     time.Duration
	StartTimeout     time.Duration
	StopTimeout      time.Duration
	ConfirmWindow    time.Duration
	PollInterval     time.Duration

	LogWindow int `validate:"min=1"`

	ConsoleCommand     string `validate:"nonzero"`
	ConsoleDir         string
	ConsoleInitCommand string
}

// Default returns a configuration with every optional key set
func Default() Configuration {
	return Configuration{
		NodeDir:            "./lightnode-deploy",
		ListenAddr:         ":8000",
		Ports:              "30300,20200",
		Layout:             "127.0.0.1:4",
		NodeRPCURL:         "http://127.0.0.1:20200",
		SessionFile:        "./last_session.json",
		FetchTimeout:       30 * time.Second,
		DownloadTimeout:    180 * time.Second,
		AuthorityTimeout:   10 * time.Second,
		BuildTimeout:       10 * time.Minute,
		StartTimeout:       30 * time.Second,
		StopTimeout:        10 * time.Second,
		ConfirmWindow:      2 * time.Second,
		PollInterval:       5 * time.Second,
		LogWindow:          500,
		ConsoleCommand:     "bash start.sh",
		ConsoleInitCommand: "getBlockNumber",
	}
}

// ReadConfFile read configurations of the file at path. The format follows the
// extension: .yaml, .yml, .toml and .json, anything else is an env file.
func ReadConfFile(path string) (Configuration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("failed to open config file: %w", err)
	}

	configMap, err := parse(filepath.Ext(path), content)
	if err != nil {
		return Configuration{}, fmt.Errorf("failed to load config: %w", err)
	}

	config := Default()
	for key, value := range configMap {
		if err := config.set(key, value); err != nil {
			return Configuration{}, err
		}
	}

	if err := config.finalize(); err != nil {
		return Configuration{}, err
	}

	return config, nil
}

func parse(ext string, content []byte) (map[string]string, error) {
	var raw map[string]interface{}

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
	default:
		return env.Parse(strings.NewReader(string(content)))
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("key %v must hold a single value", key)
		case nil:
			values[strings.ToUpper(key)] = ""
		case float64:
			values[strings.ToUpper(key)] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			values[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return values, nil
}

func (c *Configuration) set(key, value string) (err error) {
	switch key {
	case "API_URL":
		c.APIURL = value

	case "NODE_DIR":
		c.NodeDir = value

	case "LISTEN_ADDR":
		c.ListenAddr = value

	case "PORTS":
		c.Ports = value

	case "LAYOUT":
		c.Layout = value

	case "FORCE_REBUILD":
		c.ForceRebuild, err = strconv.ParseBool(value)

	case "NODE_RPC_URL":
		c.NodeRPCURL = value

	case "SESSION_FILE":
		c.SessionFile = value

	case "FETCH_TIMEOUT":
		c.FetchTimeout, err = time.ParseDuration(value)

	case "DOWNLOAD_TIMEOUT":
		c.DownloadTimeout, err = time.ParseDuration(value)

	case "AUTHORITY_TIMEOUT":
		c.AuthorityTimeout, err = time.ParseDuration(value)

	case "BUILD_TIMEOUT":
		c.BuildTimeout, err = time.ParseDuration(value)

	case "START_TIMEOUT":
		c.StartTimeout, err = time.ParseDuration(value)

	case "STOP_TIMEOUT":
		c.StopTimeout, err = time.ParseDuration(value)

	case "CONFIRM_WINDOW":
		c.ConfirmWindow, err = time.ParseDuration(value)

	case "POLL_INTERVAL":
		c.PollInterval, err = time.ParseDuration(value)

	case "LOG_WINDOW":
		c.LogWindow, err = strconv.Atoi(value)

	case "CONSOLE_COMMAND":
		c.ConsoleCommand = value

	case "CONSOLE_DIR":
		c.ConsoleDir = value

	case "CONSOLE_INIT_COMMAND":
		c.ConsoleInitCommand = value

	default:
		return fmt.Errorf("key %v is invalid", key)
	}

	if err != nil {
		return fmt.Errorf("invalid value %q for %v: %w", value, key, err)
	}
	return nil
}

func (c *Configuration) finalize() error {
	if c.APIURL == "" {
		return fmt.Errorf("API_URL is missing")
	}

	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, u := range []struct{ key, value string }{{"API_URL", c.APIURL}, {"NODE_RPC_URL", c.NodeRPCURL}} {
		parsed, err := url.Parse(u.value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%v must be an http(s) url", u.key)
		}
	}

	durations := map[string]time.Duration{
		"FETCH_TIMEOUT":     c.FetchTimeout,
		"DOWNLOAD_TIMEOUT":  c.DownloadTimeout,
		"AUTHORITY_TIMEOUT": c.AuthorityTimeout,
		"BUILD_TIMEOUT":     c.BuildTimeout,
		"START_TIMEOUT":     c.StartTimeout,
		"STOP_TIMEOUT":      c.StopTimeout,
		"CONFIRM_WINDOW":    c.ConfirmWindow,
		"POLL_INTERVAL":     c.PollInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%v must be positive", key)
		}
	}

	dir, err := filepath.Abs(c.NodeDir)
	if err != nil {
		return fmt.Errorf("invalid NODE_DIR: %w", err)
	}
	c.NodeDir = dir

	if c.ConsoleDir == "" {
		c.ConsoleDir = filepath.Join(c.NodeDir, "console")
	}

	return nil
}
