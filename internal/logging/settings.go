package logging

import (
	"io"
	"log/slog"

	"github.com/dmitrijs2005/infrakit/internal/settings"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ForSettings builds the logger a service should use for s.
//
// Interactive terminals get a colored zap console logger; everything else
// gets slog JSON, which is what log shippers expect. Debug adds caller
// information to every entry.
func ForSettings(s settings.Settings, w io.Writer, tty bool) Logger {
	if tty {
		return newConsoleLogger(s, w)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     SlogLevel(s.LogLevel),
		AddSource: s.Debug,
	})
	return NewSlogLogger(slog.New(h).With("environment", string(s.Environment)))
}

func newConsoleLogger(s settings.Settings, w io.Writer) *ZapLogger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalColorLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		ZapLevel(s.LogLevel),
	)

	var opts []zap.Option
	if s.Debug {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return NewZapLogger(zap.New(core, opts...).Sugar())
}

// SlogLevel maps a settings level to slog.
func SlogLevel(l settings.LogLevel) slog.Level {
	switch l {
	case settings.LevelDebug:
		return slog.LevelDebug
	case settings.LevelWarning:
		return slog.LevelWarn
	case settings.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ZapLevel maps a settings level to zap.
func ZapLevel(l settings.LogLevel) zapcore.Level {
	switch l {
	case settings.LevelDebug:
		return zapcore.DebugLevel
	case settings.LevelWarning:
		return zapcore.WarnLevel
	case settings.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.DiscardHandler))
}
