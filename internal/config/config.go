package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Channel  ChannelConfig  `yaml:"channel"`
	TimeBase TimeBaseConfig `yaml:"timebase"`
	Input    InputConfig    `yaml:"input"`
	Record   RecordConfig   `yaml:"record"`
	Tracking TrackingConfig `yaml:"tracking"`
	UDP      UDPConfig      `yaml:"udp"`
	Web      WebConfig      `yaml:"web"`
	Influx   InfluxConfig   `yaml:"influx"`
	Strobe   StrobeConfig   `yaml:"strobe"`
	Log      LogConfig      `yaml:"log"`
}

type ChannelConfig struct {
	PRN int `yaml:"prn"`
	// Key overrides the PRN table when non-zero.
	Key          uint16  `yaml:"key"`
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	IFHz         float64 `yaml:"if_hz"`
	DopplerHz    float64 `yaml:"doppler_hz"`
	// CarrierFCW and CodeFCW override the words derived from the rates.
	CarrierFCW uint32  `yaml:"carrier_fcw"`
	CodeFCW    uint32  `yaml:"code_fcw"`
	Epoch      *uint16 `yaml:"epoch"`
}

type TimeBaseConfig struct {
	TicPeriod   time.Duration `yaml:"tic_period"`
	AccumPeriod time.Duration `yaml:"accum_period"`
	// Explicit divides win over periods.
	TicDivide   uint32 `yaml:"tic_divide"`
	AccumDivide uint32 `yaml:"accum_divide"`
}

type InputConfig struct {
	// Source is file, sim or rtlsdr.
	Source    string `yaml:"source"`
	Path      string `yaml:"path"`
	Format    string `yaml:"format"`
	Threshold int8   `yaml:"threshold"`
	Loop      bool   `yaml:"loop"`
	Scenario  string `yaml:"scenario"`
	// Device selects an RTL-SDR by serial or index; empty or "auto" picks one.
	Device string  `yaml:"device"`
	GainDB float64 `yaml:"gain_db"`
}

type RecordConfig struct {
	Enable  bool   `yaml:"enable"`
	Path    string `yaml:"path"`
	OnlyNew bool   `yaml:"only_new"`
}

type TrackingConfig struct {
	ClosedLoop     bool    `yaml:"closed_loop"`
	PLLBandwidthHz float64 `yaml:"pll_bandwidth_hz"`
	DLLBandwidthHz float64 `yaml:"dll_bandwidth_hz"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type WebConfig struct {
	Enable   bool   `yaml:"enable"`
	Listen   string `yaml:"listen"`
	Announce bool   `yaml:"announce"`
	Name     string `yaml:"name"`
}

type InfluxConfig struct {
	Enable      bool   `yaml:"enable"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

type StrobeConfig struct {
	Enable bool `yaml:"enable"`
	Pin    int  `yaml:"pin"`
	// Event is dump or report.
	Event string `yaml:"event"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	DefaultSampleRateHz = 16.368e6
	DefaultIFHz         = 4.092e6
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML strictly, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLines(te.Errors), "; "))
		}
		return Config{}, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stripLines(errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.HasPrefix(e, "line ") {
			if i := strings.Index(e, ": "); i >= 0 {
				e = e[i+2:]
			}
		}
		out = append(out, e)
	}
	return out
}

func (cfg *Config) applyDefaults() error {
	c := &cfg.Channel
	if c.SampleRateHz == 0 {
		c.SampleRateHz = DefaultSampleRateHz
	}
	if c.IFHz == 0 {
		c.IFHz = DefaultIFHz
	}

	tb := &cfg.TimeBase
	if tb.TicPeriod <= 0 {
		tb.TicPeriod = 100 * time.Millisecond
	}
	if tb.AccumPeriod <= 0 {
		tb.AccumPeriod = time.Millisecond
	}

	in := &cfg.Input
	if in.Source == "" {
		in.Source = "file"
	}
	if in.Format == "" {
		in.Format = "2bit"
	}

	if cfg.Tracking.PLLBandwidthHz <= 0 {
		cfg.Tracking.PLLBandwidthHz = 15
	}
	if cfg.Tracking.DLLBandwidthHz <= 0 {
		cfg.Tracking.DLLBandwidthHz = 2
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.Name == "" {
		cfg.Web.Name = "gps-correlator"
	}
	if cfg.Influx.Measurement == "" {
		cfg.Influx.Measurement = "correlator"
	}
	if cfg.Strobe.Event == "" {
		cfg.Strobe.Event = "dump"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

func (cfg *Config) validate() error {
	c := cfg.Channel
	if c.PRN == 0 && c.Key == 0 {
		return fmt.Errorf("channel.prn or channel.key is required")
	}
	if c.PRN < 0 || c.PRN > 37 {
		return fmt.Errorf("channel.prn must be in 1..37")
	}
	if c.Key > 0x3FF {
		return fmt.Errorf("channel.key must fit in 10 bits")
	}
	if c.SampleRateHz < 0 {
		return fmt.Errorf("channel.sample_rate_hz must be > 0")
	}
	if c.IFHz < 0 || c.IFHz >= c.SampleRateHz/2 {
		return fmt.Errorf("channel.if_hz must be in (0, channel.sample_rate_hz/2)")
	}
	if c.CarrierFCW >= 1<<29 {
		return fmt.Errorf("channel.carrier_fcw must fit in 29 bits")
	}
	if c.CodeFCW >= 1<<28 {
		return fmt.Errorf("channel.code_fcw must fit in 28 bits")
	}
	if c.Epoch != nil && *c.Epoch > 0x7FF {
		return fmt.Errorf("channel.epoch must fit in 11 bits")
	}

	tb := cfg.TimeBase
	if tb.TicDivide >= 1<<24 || tb.AccumDivide >= 1<<24 {
		return fmt.Errorf("timebase divides must fit in 24 bits")
	}
	if tb.TicDivide == 0 && cfg.TicDivide() >= 1<<24 {
		return fmt.Errorf("timebase.tic_period is too long for the sample rate")
	}
	if tb.AccumDivide == 0 && cfg.AccumDivide() >= 1<<24 {
		return fmt.Errorf("timebase.accum_period is too long for the sample rate")
	}

	in := cfg.Input
	switch in.Source {
	case "file":
		if in.Path == "" {
			return fmt.Errorf("input.path is required when input.source is 'file'")
		}
	case "sim":
		if in.Scenario == "" {
			return fmt.Errorf("input.scenario is required when input.source is 'sim'")
		}
	case "rtlsdr":
		if in.Format != "int8" {
			return fmt.Errorf("input.format must be 'int8' when input.source is 'rtlsdr'")
		}
	default:
		return fmt.Errorf("input.source must be one of file, sim, rtlsdr")
	}
	if in.Format != "2bit" && in.Format != "int8" {
		return fmt.Errorf("input.format must be '2bit' or 'int8'")
	}
	if in.Threshold < 0 {
		return fmt.Errorf("input.threshold must be >= 0")
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if cfg.UDP.Enable && cfg.UDP.Dest == "" {
		return fmt.Errorf("udp.dest is required when udp.enable is true")
	}
	if cfg.Web.Announce && !cfg.Web.Enable {
		return fmt.Errorf("web.announce requires web.enable")
	}
	if cfg.Influx.Enable {
		if cfg.Influx.URL == "" {
			return fmt.Errorf("influx.url is required when influx.enable is true")
		}
		if cfg.Influx.Bucket == "" {
			return fmt.Errorf("influx.bucket is required when influx.enable is true")
		}
	}
	if cfg.Strobe.Enable {
		if cfg.Strobe.Pin <= 0 {
			return fmt.Errorf("strobe.pin is required when strobe.enable is true")
		}
		if cfg.Strobe.Event != "dump" && cfg.Strobe.Event != "report" {
			return fmt.Errorf("strobe.event must be 'dump' or 'report'")
		}
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, fatal")
	}
	return nil
}

func periodDivide(d time.Duration, sampleRateHz float64) uint32 {
	n := d.Seconds()*sampleRateHz + 0.5
	if n < 1 {
		return 0
	}
	if n > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(n) - 1
}

// TicDivide is the effective tic divide.
func (cfg Config) TicDivide() uint32 {
	if cfg.TimeBase.TicDivide != 0 {
		return cfg.TimeBase.TicDivide
	}
	return periodDivide(cfg.TimeBase.TicPeriod, cfg.Channel.SampleRateHz)
}

// AccumDivide is the effective accumulate divide.
func (cfg Config) AccumDivide() uint32 {
	if cfg.TimeBase.AccumDivide != 0 {
		return cfg.TimeBase.AccumDivide
	}
	return periodDivide(cfg.TimeBase.AccumPeriod, cfg.Channel.SampleRateHz)
}
