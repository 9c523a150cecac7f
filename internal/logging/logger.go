package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Options struct {
	ServiceName string
	Level       string
	Pretty      bool
	Output      io.Writer
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.ServiceName != "" {
		ctx = ctx.Str("service", opts.ServiceName)
	}
	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// PrintfLogger adapts a zerolog logger to printf-style logger interfaces
// such as gorm's logger.Writer and goose.Logger.
type PrintfLogger struct {
	Log   zerolog.Logger
	Level zerolog.Level
}

func (p PrintfLogger) Printf(format string, v ...any) {
	p.Log.WithLevel(p.Level).Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (p PrintfLogger) Fatalf(format string, v ...any) {
	p.Log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
