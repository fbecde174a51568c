package main

import (
	"fmt"
	"io"
	"strings"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/epoch"
	"gps-correlator/internal/record"
)

type recordSummary struct {
	Segments int
	Records  int
	// Span is the largest cycle offset from a segment start.
	Span      uint64
	MeanPower float64
	MaxAbsIP  int32
	// SignFlips counts IP sign changes between consecutive records, which
	// track data bit transitions once the carrier is locked.
	SignFlips int
	// Bits counts records per data bit number within the frame.
	Bits map[uint8]int
}

func summarizeRecords(records []record.Record) recordSummary {
	s := recordSummary{Bits: map[uint8]int{}}
	var (
		origin    uint64
		haveStart bool
		prevSign  int
		powerSum  float64
	)
	for _, r := range records {
		if r.Start {
			s.Segments++
			haveStart = false
			prevSign = 0
			continue
		}
		if !haveStart {
			origin = r.Cycle
			haveStart = true
		}
		s.Records++
		if r.Cycle > origin && r.Cycle-origin > s.Span {
			s.Span = r.Cycle - origin
		}

		ip := r.Get(channel.IP)
		qp := r.Get(channel.QP)
		powerSum += float64(ip)*float64(ip) + float64(qp)*float64(qp)
		sign := 0
		switch {
		case ip > 0:
			sign = 1
			s.MaxAbsIP = max(s.MaxAbsIP, ip)
		case ip < 0:
			sign = -1
			s.MaxAbsIP = max(s.MaxAbsIP, -ip)
		}
		if sign != 0 && prevSign != 0 && sign != prevSign {
			s.SignFlips++
		}
		if sign != 0 {
			prevSign = sign
		}
		_, bit := epoch.Unpack(r.Epoch)
		s.Bits[bit]++
	}
	if s.Segments == 0 && s.Records > 0 {
		s.Segments = 1
	}
	if s.Records > 0 {
		s.MeanPower = powerSum / float64(s.Records)
	}
	return s
}

func printRecordSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := loadRecords(path)
	if err != nil {
		return err
	}
	s := summarizeRecords(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "records: %d\n", s.Records)
	fmt.Fprintf(w, "span_cycles: %d\n", s.Span)
	fmt.Fprintf(w, "mean_prompt_power: %.1f\n", s.MeanPower)
	fmt.Fprintf(w, "max_abs_ip: %d\n", s.MaxAbsIP)
	fmt.Fprintf(w, "ip_sign_flips: %d\n", s.SignFlips)
	fmt.Fprintf(w, "bits_seen: %d\n", len(s.Bits))
	return nil
}
