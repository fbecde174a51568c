package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimal = "channel:\n  prn: 1\ninput:\n  path: ./samples.bin\n"

func TestLoad_RequiresPRN(t *testing.T) {
	path := writeTempConfig(t, "input:\n  path: x.bin\n")
	_, err := Load(path)
	requireErrEq(t, err, "channel.prn or channel.key is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, minimal)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Channel.SampleRateHz != DefaultSampleRateHz {
		t.Fatalf("sample_rate_hz=%v want %v", cfg.Channel.SampleRateHz, DefaultSampleRateHz)
	}
	if cfg.Channel.IFHz != DefaultIFHz {
		t.Fatalf("if_hz=%v want %v", cfg.Channel.IFHz, DefaultIFHz)
	}
	if cfg.TimeBase.AccumPeriod != time.Millisecond {
		t.Fatalf("accum_period=%v want 1ms", cfg.TimeBase.AccumPeriod)
	}
	if cfg.TimeBase.TicPeriod != 100*time.Millisecond {
		t.Fatalf("tic_period=%v want 100ms", cfg.TimeBase.TicPeriod)
	}
	if cfg.Input.Source != "file" || cfg.Input.Format != "2bit" {
		t.Fatalf("input=%+v", cfg.Input)
	}
	if cfg.Tracking.PLLBandwidthHz != 15 || cfg.Tracking.DLLBandwidthHz != 2 {
		t.Fatalf("tracking=%+v", cfg.Tracking)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("web.listen=%q", cfg.Web.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level=%q", cfg.Log.Level)
	}
	if cfg.Channel.Epoch != nil {
		t.Fatalf("epoch=%v want nil", *cfg.Channel.Epoch)
	}
}

func TestConfig_DividesFromPeriods(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := cfg.AccumDivide(); got != 16367 {
		t.Fatalf("AccumDivide()=%d want 16367", got)
	}
	if got := cfg.TicDivide(); got != 1636799 {
		t.Fatalf("TicDivide()=%d want 1636799", got)
	}
}

func TestConfig_ExplicitDividesWin(t *testing.T) {
	cfg, err := Parse([]byte(minimal + "timebase:\n  tic_divide: 99\n  accum_divide: 9\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.TicDivide() != 99 || cfg.AccumDivide() != 9 {
		t.Fatalf("divides=%d,%d want 99,9", cfg.TicDivide(), cfg.AccumDivide())
	}
}

func TestLoad_TicPeriodTooLong(t *testing.T) {
	path := writeTempConfig(t, minimal+"timebase:\n  tic_period: 2s\n")
	_, err := Load(path)
	requireErrEq(t, err, "timebase.tic_period is too long for the sample rate")
}

func TestLoad_EpochParsed(t *testing.T) {
	path := writeTempConfig(t, minimal+"  epoch: 0\n")
	_, err := Load(path)
	// epoch under input is unknown
	if err == nil {
		t.Fatalf("expected unknown field error")
	}

	path = writeTempConfig(t, "channel:\n  prn: 1\n  epoch: 42\ninput:\n  path: x.bin\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Channel.Epoch == nil || *cfg.Channel.Epoch != 42 {
		t.Fatalf("epoch=%v want 42", cfg.Channel.Epoch)
	}
}

func TestLoad_ChannelValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"prn range", "channel:\n  prn: 38\ninput:\n  path: x\n", "channel.prn must be in 1..37"},
		{"key width", "channel:\n  key: 2048\ninput:\n  path: x\n", "channel.key must fit in 10 bits"},
		{"if above nyquist", "channel:\n  prn: 1\n  if_hz: 9000000\ninput:\n  path: x\n", "channel.if_hz must be in (0, channel.sample_rate_hz/2)"},
		{"carrier fcw", "channel:\n  prn: 1\n  carrier_fcw: 536870912\ninput:\n  path: x\n", "channel.carrier_fcw must fit in 29 bits"},
		{"code fcw", "channel:\n  prn: 1\n  code_fcw: 268435456\ninput:\n  path: x\n", "channel.code_fcw must fit in 28 bits"},
		{"epoch", "channel:\n  prn: 1\n  epoch: 2048\ninput:\n  path: x\n", "channel.epoch must fit in 11 bits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_InputValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"file path", "channel:\n  prn: 1\n", "input.path is required when input.source is 'file'"},
		{"sim scenario", "channel:\n  prn: 1\ninput:\n  source: sim\n", "input.scenario is required when input.source is 'sim'"},
		{"rtlsdr format", "channel:\n  prn: 1\ninput:\n  source: rtlsdr\n", "input.format must be 'int8' when input.source is 'rtlsdr'"},
		{"source", "channel:\n  prn: 1\ninput:\n  source: tape\n", "input.source must be one of file, sim, rtlsdr"},
		{"format", "channel:\n  prn: 1\ninput:\n  path: x\n  format: 4bit\n", "input.format must be '2bit' or 'int8'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, minimal+"record:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "record.path is required when record.enable is true")
}

func TestLoad_UDPRequiresDest(t *testing.T) {
	path := writeTempConfig(t, minimal+"udp:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "udp.dest is required when udp.enable is true")
}

func TestLoad_AnnounceRequiresWeb(t *testing.T) {
	path := writeTempConfig(t, minimal+"web:\n  announce: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "web.announce requires web.enable")
}

func TestLoad_InfluxValidation(t *testing.T) {
	_, err := Load(writeTempConfig(t, minimal+"influx:\n  enable: true\n"))
	requireErrEq(t, err, "influx.url is required when influx.enable is true")

	_, err = Load(writeTempConfig(t, minimal+"influx:\n  enable: true\n  url: http://localhost:8086\n"))
	requireErrEq(t, err, "influx.bucket is required when influx.enable is true")
}

func TestLoad_StrobeValidation(t *testing.T) {
	_, err := Load(writeTempConfig(t, minimal+"strobe:\n  enable: true\n"))
	requireErrEq(t, err, "strobe.pin is required when strobe.enable is true")

	_, err = Load(writeTempConfig(t, minimal+"strobe:\n  enable: true\n  pin: 17\n  event: bit\n"))
	requireErrEq(t, err, "strobe.event must be 'dump' or 'report'")
}

func TestLoad_LogLevelValidation(t *testing.T) {
	_, err := Load(writeTempConfig(t, minimal+"log:\n  level: chatty\n"))
	requireErrEq(t, err, "log.level must be one of debug, info, warn, error, fatal")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, minimal+"web:\n  mode: fast\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.WebConfig")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
}
