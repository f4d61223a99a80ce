// Package logger 构造服务使用的结构化日志实例。
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 描述日志输出
type Config struct {
	Level string
	// File 非空时额外写入按大小轮转的日志文件
	File string
}

// New 根据配置创建日志实例；stderr 始终输出，File 非空时同时写文件。
func New(cfg Config) (*log.Logger, error) {
	var writer io.Writer = os.Stderr

	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		writer = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = log.InfoLevel
	}

	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "habitlog",
	}), nil
}

// Discard 返回丢弃所有输出的日志实例，供测试与未注入日志的组件使用
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard 在 l 为空时回退到 Discard
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
