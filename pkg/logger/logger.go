package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
)

// Options 日志配置
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // console, json
	Caller bool      // 输出调用位置
	Output io.Writer // 默认 stderr，stdout 留给编码结果
}

// levelEncoder 固定 5 字符宽度的彩色等级
func levelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	s := level.CapitalString()
	for len(s) < 5 {
		s += " "
	}
	color := "\x1b[31;1m"
	switch level {
	case zapcore.DebugLevel:
		color = "\x1b[35m"
	case zapcore.InfoLevel:
		color = "\x1b[34m"
	case zapcore.WarnLevel:
		color = "\x1b[33m"
	case zapcore.ErrorLevel:
		color = "\x1b[31m"
	}
	enc.AppendString(color + s + "\x1b[0m")
}

// ParseLevel 未知级别回退到 info
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// LevelFromVerbosity 把 -v 次数映射为日志级别
func LevelFromVerbosity(v int) string {
	if v >= 1 {
		return "debug"
	}
	return "info"
}

// New 按配置创建 Logger，不修改全局 Logger
func New(opts Options) *zap.Logger {
	var cfg zapcore.EncoderConfig
	if opts.Format == "json" {
		cfg = zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = levelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05")
		cfg.ConsoleSeparator = " "
	}
	cfg.TimeKey = "time"

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), ParseLevel(opts.Level))

	zopts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Caller {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...)
}

// Init 替换全局 Logger
func Init(opts Options) {
	l := New(opts)
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// Get 获取全局 Logger，未初始化时使用 info/console
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = New(Options{Level: "info", Format: "console"})
	}
	return globalLogger
}

// Sync 刷新日志缓冲，最多等待 200ms
func Sync() {
	l := Get()
	done := make(chan struct{})
	go func() {
		_ = l.Sync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
}

func Debug(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

var (
	String = zap.String
	Int    = zap.Int
	Bool   = zap.Bool
	Err    = zap.Error
)
