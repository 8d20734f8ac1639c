package log

import "github.com/kochabx/rentoso/log/writer"

const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputMulti   = "multi"
)

// Config 日志配置
type Config struct {
	Level  string     `json:"level" mapstructure:"level" default:"info"`
	Output string     `json:"output" mapstructure:"output" default:"console" validate:"oneof=console file multi"`
	Caller bool       `json:"caller" mapstructure:"caller"`
	Raw    bool       `json:"raw" mapstructure:"raw"` // 关闭脱敏
	File   FileConfig `json:"file" mapstructure:"file"`
}

// FileConfig 日志文件配置，rotate 为 time 时按小时轮转，为 size 时按大小轮转
type FileConfig struct {
	Dir         string `json:"dir" mapstructure:"dir" default:"log"`
	Name        string `json:"name" mapstructure:"name" default:"rentoso"`
	Rotate      string `json:"rotate" mapstructure:"rotate" default:"size" validate:"oneof=time size"`
	MaxAgeHours int    `json:"max_age_hours" mapstructure:"max_age_hours" default:"168"`
	RotateHours int    `json:"rotate_hours" mapstructure:"rotate_hours" default:"24"`
	MaxSizeMB   int    `json:"max_size_mb" mapstructure:"max_size_mb" default:"50"`
	MaxBackups  int    `json:"max_backups" mapstructure:"max_backups" default:"5"`
	Compress    bool   `json:"compress" mapstructure:"compress"`
}

func (c FileConfig) rotateConfig() writer.RotateConfig {
	mode := writer.RotateModeSize
	if c.Rotate == "time" {
		mode = writer.RotateModeTime
	}
	return writer.RotateConfig{
		Mode:        mode,
		Dir:         c.Dir,
		Name:        c.Name,
		MaxAgeHours: c.MaxAgeHours,
		RotateHours: c.RotateHours,
		MaxSizeMB:   c.MaxSizeMB,
		MaxBackups:  c.MaxBackups,
		Compress:    c.Compress,
	}
}
