// Package config loads the daemon's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Config is the top level configuration.
type Config struct {
	Mqtt struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		ClientID string `yaml:"clientId"`
		Topics   struct {
			Stream          string `yaml:"stream"`
			CalibrateClient string `yaml:"calibrateClient"`
			CalibrateServer string `yaml:"calibrateServer"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`

	Strip struct {
		Pixels int `yaml:"pixels"`
	} `yaml:"strip"`

	Scheduler struct {
		DisplayRate    time.Duration `yaml:"displayRate"`
		AnimationFrame bool          `yaml:"animationFrame"`
		Refresh        time.Duration `yaml:"refresh"`
	} `yaml:"scheduler"`

	Stream struct {
		FrameInterval  time.Duration `yaml:"frameInterval"`
		MaxPublishRate float64       `yaml:"maxPublishRate"`
		TransitionTime time.Duration `yaml:"transitionTime"`
		Cycle          string        `yaml:"cycle"`
	} `yaml:"stream"`

	Calibration struct {
		StepDelay time.Duration `yaml:"stepDelay"`
	} `yaml:"calibration"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	API struct {
		Listen string `yaml:"listen"`
		Static string `yaml:"static"`
	} `yaml:"api"`
}

// Default returns a Config with every optional field filled in.
func Default() Config {
	var c Config
	c.Mqtt.Topics.Stream = "home/xmastree/stream"
	c.Mqtt.Topics.CalibrateClient = "home/xmastree/calibrate/client"
	c.Mqtt.Topics.CalibrateServer = "home/xmastree/calibrate/server"
	c.Strip.Pixels = 500
	c.Scheduler.DisplayRate = time.Second / 30
	c.Scheduler.AnimationFrame = true
	c.Scheduler.Refresh = time.Second / 60
	c.Stream.FrameInterval = 33 * time.Millisecond
	c.Stream.MaxPublishRate = 40
	c.Stream.TransitionTime = 5 * time.Second
	c.Stream.Cycle = "@every 2m"
	c.Calibration.StepDelay = 200 * time.Millisecond
	c.Log.Level = "info"
	c.API.Listen = ":3000"
	c.API.Static = "client/dist"
	return c
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.SetStrict(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Mqtt.URL) == "" {
		problems = append(problems, "mqtt.url is required")
	}
	if c.Strip.Pixels <= 0 || c.Strip.Pixels > 0xffff {
		problems = append(problems, "strip.pixels must be between 1 and 65535")
	}
	if c.Scheduler.DisplayRate <= 0 {
		problems = append(problems, "scheduler.displayRate must be positive")
	}
	if c.Scheduler.Refresh <= 0 {
		problems = append(problems, "scheduler.refresh must be positive")
	}
	if c.Stream.FrameInterval < 0 {
		problems = append(problems, "stream.frameInterval must not be negative")
	}
	if c.Stream.MaxPublishRate <= 0 {
		problems = append(problems, "stream.maxPublishRate must be positive")
	}
	if c.Stream.TransitionTime <= 0 {
		problems = append(problems, "stream.transitionTime must be positive")
	}
	if c.Stream.Cycle != "" {
		if _, err := cron.ParseStandard(c.Stream.Cycle); err != nil {
			problems = append(problems, fmt.Sprintf("stream.cycle: %v", err))
		}
	}
	if c.Calibration.StepDelay <= 0 {
		problems = append(problems, "calibration.stepDelay must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level: %v", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy of c that is safe to log.
func (c Config) Redacted() Config {
	if c.Mqtt.Password != "" {
		c.Mqtt.Password = "******"
	}
	return c
}

// LogLevel returns the configured level. Validate guarantees it parses.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
