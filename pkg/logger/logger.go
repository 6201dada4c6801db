package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger 对 logrus 的轻量封装，按组件打标签
type Logger struct {
	*logrus.Logger
}

// New 创建日志实例，level 为 logrus 级别名，format 取值 text 或 json
func New(level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{Logger: l}
}

// NewDiscard 丢弃所有输出，测试使用
func NewDiscard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// Component 返回带 component 字段的日志条目
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}
