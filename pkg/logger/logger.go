package logger

import (
	"fmt"
	"os"

	"github.com/nehaa3012/LMS/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前是 no-op logger，测试无需初始化
var Log = zap.NewNop()

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Level 显式配置优先，否则 debug 模式输出 debug 日志
func Level(cfg config.LogConfig, mode string) (zapcore.Level, error) {
	if cfg.Level == "" {
		if mode == "debug" {
			return zap.DebugLevel, nil
		}
		return zap.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.InfoLevel, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	return level, nil
}

// Cores 控制台输出总是开启；配置了文件时额外写一份 JSON 日志并按大小轮转
func Cores(cfg config.LogConfig, level zapcore.Level) []zapcore.Core {
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level),
	}
	if cfg.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotate), level))
	}
	return cores
}

// New 按配置构建 logger，不修改全局 Log
func New(cfg config.LogConfig, mode string) (*zap.Logger, error) {
	level, err := Level(cfg, mode)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewTee(Cores(cfg, level)...)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).Named("ledger"), nil
}

func InitLogger(cfg *config.Config) {
	l, err := New(cfg.Log, cfg.Server.Mode)
	if err != nil {
		// 级别写错时退回默认级别继续启动
		fallback := cfg.Log
		fallback.Level = ""
		l, _ = New(fallback, cfg.Server.Mode)
		l.Warn("Falling back to default log level", zap.Error(err))
	}
	Log = l
}
