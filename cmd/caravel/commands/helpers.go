package commands

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/caravelhq/caravel/cmd/caravel/config"
	"github.com/caravelhq/caravel/internal/logger"
	"github.com/caravelhq/caravel/protocol/wire"
)

const receiverFlagDesc = `Address of the receiver. Accepted formats:
  - 192.168.0.12
  - 192.168.0.12:40818
  - [::1]:40818
  - somehost.local
	`

var validate = validator.New()
var ErrInvalidAddress = errors.New("invalid address provided")

// validateAddress validates a hostname or IP, optionally with a port.
func validateAddress(addr string) error {

	// IPv4 and IPv6 address validation.
	err := validate.Var(addr, "ip")
	if err == nil {
		return nil
	}

	// IPv4 or IPv6 or domain or localhost.
	err = validate.Var(addr, "hostname")
	if err == nil {
		return nil
	}

	// IPv4 or domain or localhost and a port. Or just a shorthand port (:1234).
	err = validate.Var(addr, "hostname_port")
	if err == nil {
		return nil
	}

	// Also validate IPv6 host + port combinations. The hostname_port
	// validator does not cover these.
	_, port, hostPortErr := net.SplitHostPort(addr)
	if hostPortErr != nil {
		return ErrInvalidAddress
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return ErrInvalidAddress
	}
	return nil
}

// ensurePort appends the default transfer port to addresses that carry none.
func ensurePort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(wire.DefaultPort))
}

// setupLoggingFromViper returns a logger writing to the config directory in
// verbose mode and a no-op logger otherwise.
func setupLoggingFromViper() (*zap.Logger, error) {
	if !viper.GetBool("verbose") {
		return zap.NewNop(), nil
	}
	path, err := config.LogPath()
	if err != nil {
		return nil, fmt.Errorf("resolving log path: %w", err)
	}
	lgr, err := logger.New(path)
	if err != nil {
		return nil, fmt.Errorf("could not log to file (%s): %w", path, err)
	}
	return lgr, nil
}
