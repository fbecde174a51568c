// Package announce advertises the web status server over DNS-SD.
package announce

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const ServiceType = "_gps-correlator._tcp"

// PortFromListen extracts the TCP port from a listen address like ":8080".
func PortFromListen(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, fmt.Errorf("listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("listen address %q: invalid port", listen)
	}
	return port, nil
}

func serviceConfig(name string, port int, text map[string]string) dnssd.Config {
	return dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: text,
	}
}

// Run announces the service until ctx is done.
func Run(ctx context.Context, name string, port int, text map[string]string, logger *log.Logger) error {
	sv, err := dnssd.NewService(serviceConfig(name, port, text))
	if err != nil {
		return fmt.Errorf("dns-sd service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("dns-sd responder: %w", err)
	}
	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("dns-sd add: %w", err)
	}
	if logger != nil {
		logger.Info("announcing status server", "type", ServiceType, "name", name, "port", port)
	}
	err = rp.Respond(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
