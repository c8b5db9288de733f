package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the global zerolog logger. An empty path logs to stderr.
// The returned closer releases the log file, if one was opened.
func Init(level zerolog.Level, path string) io.Closer {
	var sink io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)

	if path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		sink = logFile
		closer = logFile
	}

	multi := zerolog.MultiLevelWriter(sink)

	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if level == zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
	return closer
}
