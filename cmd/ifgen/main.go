// Command ifgen renders a scenario script into a 2bit IF sample file, with
// optional prompt and carrier traces of the first satellite.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"gps-correlator/internal/ifsample"
	"gps-correlator/internal/logging"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/sim"
	"gps-correlator/internal/trace"
)

type options struct {
	Scenario     string
	Out          string
	PromptTrace  string
	CarrierTrace string
	LogLevel     string
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("ifgen", pflag.ExitOnError)
	fs.StringVarP(&opts.Scenario, "scenario", "s", "", "Scenario YAML path (required)")
	fs.StringVarP(&opts.Out, "out", "o", "", "Output 2bit sample file (required)")
	fs.StringVar(&opts.PromptTrace, "prompt-trace", "", "Write the prompt code, one 0/1 per line")
	fs.StringVar(&opts.CarrierTrace, "carrier-trace", "", "Write the carrier replica, one \"I Q\" pair per line")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.New(opts.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ifgen: %v\n", err)
		os.Exit(2)
	}
	if err := generate(opts, logger); err != nil {
		logger.Error("ifgen failed", "err", err)
		os.Exit(1)
	}
}

func generate(opts options, logger *log.Logger) error {
	if opts.Scenario == "" {
		return errors.New("--scenario is required")
	}
	if opts.Out == "" {
		return errors.New("--out is required")
	}

	script, err := sim.LoadScenarioScript(opts.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	scn, err := sim.NewScenario(script)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	src := sim.NewSource(scn)

	out, err := ifsample.Create(opts.Out)
	if err != nil {
		return err
	}
	closers := []io.Closer{out}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	var tapErr error
	var prompt *trace.PromptWriter
	var carrier *trace.CarrierWriter
	if opts.PromptTrace != "" {
		if prompt, err = trace.CreatePrompt(opts.PromptTrace); err != nil {
			return err
		}
		closers = append(closers, prompt)
	}
	if opts.CarrierTrace != "" {
		if carrier, err = trace.CreateCarrier(opts.CarrierTrace); err != nil {
			return err
		}
		closers = append(closers, carrier)
	}
	if prompt != nil || carrier != nil {
		src.Tap = func(r sim.Replica) {
			if tapErr != nil {
				return
			}
			if prompt != nil {
				tapErr = prompt.Write(r.Prompt)
			}
			if carrier != nil && tapErr == nil {
				tapErr = carrier.Write(trace.IQ{I: r.I(), Q: r.Q()})
			}
		}
	}

	buf := make([]mixer.Sample, 1<<16)
	for {
		n, rerr := src.ReadSamples(buf)
		if err := out.WriteSamples(buf[:n]); err != nil {
			return err
		}
		if tapErr != nil {
			return fmt.Errorf("write trace: %w", tapErr)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	// Close explicitly so flush errors surface.
	for _, c := range closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	closers = nil
	logger.Info("wrote samples", "path", opts.Out, "samples", out.Count(), "duration", scn.Duration())
	return nil
}
