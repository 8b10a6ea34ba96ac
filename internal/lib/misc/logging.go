package misc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/term"
)

func Errorf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelError, format, args...)
}

func Warnf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelWarn, format, args...)
}

func Infof(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelInfo, format, args...)
}

func Debugf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelDebug, format, args...)
}

func helperf(logger *slog.Logger, level slog.Level, format string, args ...any) {
	if !logger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip [Callers, helperf, [info/warn/debug]f]
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	_ = logger.Handler().Handle(context.Background(), r)
}

// NewLogger returns the logger to use for the process.  When out is a terminal we're being run
// as a CLI and use the minimal handler, otherwise (daemon / container) output is json w/ key
// names google logging expects.
func NewLogger(out *os.File, level slog.Leveler) *slog.Logger {
	if term.IsTerminal(int(out.Fd())) {
		return slog.New(NewMinimalHandler(out,
			MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: level}}))
	}
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey {
				a.Key = "message"
			} else if a.Key == slog.LevelKey && len(groups) == 0 {
				a.Key = "severity"
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

type MinimalHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// MinimalHandler prints just the message followed by any attributes as a json object.
type MinimalHandler struct {
	slog.Handler
	l *log.Logger
}

func (h *MinimalHandler) Handle(ctx context.Context, r slog.Record) error {
	var extra string
	if r.NumAttrs() > 0 {
		fields := make(map[string]any, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			fields[a.Key] = fmt.Sprintf("%v", a.Value.Any())
			return true
		})
		b, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		extra = string(b)
	}
	if r.Level >= slog.LevelWarn {
		h.l.Println(r.Level.String()+":", r.Message, extra)
		return nil
	}
	h.l.Println(r.Message, extra)
	return nil
}

func NewMinimalHandler(out io.Writer, opts MinimalHandlerOptions) *MinimalHandler {
	return &MinimalHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
}
