// Package shutdown tears the controller down into its safe state: every
// relay de-energised and the GPIO lines released.
package shutdown

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

const (
	ExitOK    = 0
	ExitError = 1
	// ExitRestart is non-zero so systemd's Restart=on-failure brings the
	// controller back up.
	ExitRestart = 75
)

// ExitFunc is swapped out in tests.
var ExitFunc = os.Exit

// Outputs is anything that can drop all relays at once.
type Outputs interface {
	AllOff() error
}

// Teardown drives every relay off and then closes each closer in order.
// Failures are logged; teardown always runs to the end.
func Teardown(outputs Outputs, closers ...io.Closer) {
	if outputs != nil {
		if err := outputs.AllOff(); err != nil {
			log.Error().Err(err).Msg("Failed to drive all relays off")
		} else {
			log.Info().Msg("All relays deactivated")
		}
	}
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Close failed during shutdown")
		}
	}
}

func Shutdown(outputs Outputs, closers ...io.Closer) {
	Teardown(outputs, closers...)
	log.Info().Msg("Controller shut down")
	ExitFunc(ExitOK)
}

func Restart(outputs Outputs, closers ...io.Closer) {
	Teardown(outputs, closers...)
	log.Warn().Int("exit_code", ExitRestart).Msg("Exiting for restart")
	ExitFunc(ExitRestart)
}

func ShutdownWithError(err error, msg string, outputs Outputs, closers ...io.Closer) {
	log.Error().Err(err).Msg(msg)
	Teardown(outputs, closers...)
	ExitFunc(ExitError)
}
