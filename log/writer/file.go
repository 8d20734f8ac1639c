package writer

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateMode 日志轮转模式
type RotateMode int

const (
	RotateModeTime RotateMode = iota
	RotateModeSize
)

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Mode        RotateMode
	Dir         string
	Name        string
	MaxAgeHours int
	RotateHours int
	MaxSizeMB   int
	MaxBackups  int
	Compress    bool
}

func (c RotateConfig) path(pattern string) string {
	name := c.Name + ".log"
	if pattern != "" {
		name = c.Name + "." + pattern + ".log"
	}
	return filepath.Join(c.Dir, name)
}

// File 文件输出，按时间时使用 rotatelogs，按大小时使用 lumberjack
func File(c RotateConfig) (io.Writer, error) {
	switch c.Mode {
	case RotateModeTime:
		w, err := rotatelogs.New(
			c.path("%Y%m%d%H"),
			rotatelogs.WithLinkName(c.path("")),
			rotatelogs.WithMaxAge(time.Duration(c.MaxAgeHours)*time.Hour),
			rotatelogs.WithRotationTime(time.Duration(c.RotateHours)*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create time rotate writer: %w", err)
		}
		return w, nil
	case RotateModeSize:
		return &lumberjack.Logger{
			Filename:   c.path(""),
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeHours / 24,
			Compress:   c.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rotate mode: %d", c.Mode)
	}
}
