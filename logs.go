package chaosmonkey

import (
	"go.uber.org/zap"
)

type Logger interface {
	Debug(msg string, args ...Field)
	Info(msg string, args ...Field)
	Warn(msg string, args ...Field)
	Error(msg string, args ...Field)
	// With 返回携带固定字段的子Logger
	With(args ...Field) Logger
}

type Field struct {
	Key string
	Val any
}

func String(key, val string) Field {
	return Field{Key: key, Val: val}
}

func Err(err error) Field {
	if err == nil {
		return Field{Key: "err", Val: nil}
	}
	return Field{Key: "err", Val: err.Error()}
}

type ZapLogger struct {
	zap *zap.Logger
}

func NewZapLogger(zap *zap.Logger) Logger {
	return &ZapLogger{zap: zap}
}

// NewNopLogger 丢弃所有日志
func NewNopLogger() Logger {
	return &ZapLogger{zap: zap.NewNop()}
}

func (z *ZapLogger) Debug(msg string, args ...Field) {
	z.zap.Debug(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Info(msg string, args ...Field) {
	z.zap.Info(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Warn(msg string, args ...Field) {
	z.zap.Warn(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Error(msg string, args ...Field) {
	z.zap.Error(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) With(args ...Field) Logger {
	return &ZapLogger{zap: z.zap.With(z.toZapFields(args)...)}
}

func (z *ZapLogger) toZapFields(args []Field) []zap.Field {
	res := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		res = append(res, zap.Any(arg.Key, arg.Val))
	}

	return res
}
