package frontend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// L1Hz is the GPS L1 carrier frequency.
const L1Hz = 1575.42e6

// Device describes one RTL-SDR-class device as enumerated by rtl_test.
type Device struct {
	Index  int
	Serial string
}

func IsAutoTag(tag string) bool {
	t := strings.TrimSpace(strings.ToLower(tag))
	return t == "" || t == "auto"
}

// DetectDevices enumerates RTL-SDR devices by shelling out to rtl_test.
func DetectDevices(ctx context.Context) ([]Device, error) {
	// rtl_test can block briefly while opening devices.
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rtl_test", "-t")
	out, err := cmd.CombinedOutput()
	if err != nil {
		// A non-zero exit can still carry the device list.
		if len(out) == 0 {
			return nil, fmt.Errorf("rtl_test failed: %w", err)
		}
	}

	devs := ParseRTLTestOutput(string(out))
	if len(devs) == 0 {
		return nil, fmt.Errorf("no RTL-SDR devices found")
	}
	return devs, nil
}

var rtlTestLineRE = regexp.MustCompile(`(?m)^\s*(\d+):\s+.*?\bSN:\s*([^\s]+)\s*$`)

// ParseRTLTestOutput extracts device indices + serials from rtl_test output.
func ParseRTLTestOutput(out string) []Device {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	matches := rtlTestLineRE.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return nil
	}
	devs := make([]Device, 0, len(matches))
	seen := map[int]bool{}
	for _, m := range matches {
		idx, err := strconv.Atoi(strings.TrimSpace(m[1]))
		if err != nil || seen[idx] {
			continue
		}
		seen[idx] = true
		devs = append(devs, Device{Index: idx, Serial: strings.TrimSpace(m[2])})
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Index < devs[j].Index })
	return devs
}

// SelectDevice picks the device for tag.
//
// An auto tag prefers a serial containing "gps" or "l1", then the lowest
// index. Otherwise tag matches a serial exactly or, failing that, an index.
func SelectDevice(devs []Device, tag string) (Device, error) {
	if len(devs) == 0 {
		return Device{}, fmt.Errorf("no RTL-SDR devices found")
	}
	if IsAutoTag(tag) {
		for _, hint := range []string{"gps", "l1"} {
			for _, d := range devs {
				if strings.Contains(strings.ToLower(d.Serial), hint) {
					return d, nil
				}
			}
		}
		return devs[0], nil
	}
	tag = strings.TrimSpace(tag)
	for _, d := range devs {
		if d.Serial == tag {
			return d, nil
		}
	}
	if idx, err := strconv.Atoi(tag); err == nil {
		for _, d := range devs {
			if d.Index == idx {
				return d, nil
			}
		}
	}
	return Device{}, fmt.Errorf("RTL-SDR device %q not found in %s", tag, FormatDevices(devs))
}

// UpsertFlagValue ensures args contains flag set to value.
//
// Supports both "-flag value" and "-flag=value" forms.
func UpsertFlagValue(args []string, flag string, value string) []string {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return args
	}
	for i := range args {
		if strings.HasPrefix(args[i], flag+"=") {
			args[i] = flag + "=" + value
			return args
		}
	}
	for i := 0; i < len(args); i++ {
		if args[i] == flag {
			if i+1 < len(args) {
				args[i+1] = value
				return args
			}
			return append(args, value)
		}
	}
	return append(args, flag, value)
}

// HasAnyFlag reports whether args contains any of the provided flags.
// It matches both "-flag" and "-flag=..." forms.
func HasAnyFlag(args []string, flags ...string) bool {
	set := map[string]struct{}{}
	for _, f := range flags {
		f = strings.TrimSpace(f)
		if f != "" {
			set[f] = struct{}{}
		}
	}
	for _, a := range args {
		if _, ok := set[a]; ok {
			return true
		}
		for f := range set {
			if strings.HasPrefix(a, f+"=") {
				return true
			}
		}
	}
	return false
}

// CaptureParams configures an rtl_sdr capture.
type CaptureParams struct {
	Device       Device
	SampleRateHz float64
	// IFHz places L1 at this offset above the tuned frequency.
	IFHz   float64
	GainDB float64
	// Extra is passed through; its values win over the derived ones.
	Extra []string
}

// CaptureArgs builds the rtl_sdr argument list streaming to stdout.
func CaptureArgs(p CaptureParams) []string {
	args := append([]string(nil), p.Extra...)
	if !HasAnyFlag(args, "-f") {
		args = UpsertFlagValue(args, "-f", strconv.FormatInt(int64(L1Hz-p.IFHz), 10))
	}
	if !HasAnyFlag(args, "-s") {
		args = UpsertFlagValue(args, "-s", strconv.FormatInt(int64(p.SampleRateHz), 10))
	}
	if !HasAnyFlag(args, "-d") {
		args = UpsertFlagValue(args, "-d", strconv.Itoa(p.Device.Index))
	}
	if !HasAnyFlag(args, "-g") && p.GainDB > 0 {
		args = UpsertFlagValue(args, "-g", strconv.FormatFloat(p.GainDB, 'f', 1, 64))
	}
	return append(args, "-")
}

// FormatDevices formats devices for logging.
func FormatDevices(devs []Device) string {
	if len(devs) == 0 {
		return "[]"
	}
	var b bytes.Buffer
	b.WriteString("[")
	for i := range devs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d:%s", devs[i].Index, devs[i].Serial)
	}
	b.WriteString("]")
	return b.String()
}
