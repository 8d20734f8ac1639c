package config

import (
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/core/validator"
	"github.com/kochabx/rentoso/errors"
)

// EnvPrefix 环境变量前缀，如 RENTOSO_BACKEND_URL
const EnvPrefix = "RENTOSO"

// FileLoader 从文件和环境变量加载配置
type FileLoader struct {
	viper        *viper.Viper
	validate     *validator.Validator
	allowMissing bool
}

// NewFileLoader 未提供 paths 时 name 视为完整文件路径
func NewFileLoader(name string, paths []string, v *viper.Viper, validate *validator.Validator, allowMissing bool) *FileLoader {
	ext := filepath.Ext(name)
	if len(paths) == 0 {
		v.SetConfigFile(name)
	} else {
		for _, p := range paths {
			v.AddConfigPath(p)
		}
		v.SetConfigName(strings.TrimSuffix(filepath.Base(name), ext))
	}
	v.SetConfigType(strings.TrimPrefix(ext, "."))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{viper: v, validate: validate, allowMissing: allowMissing}
}

func (l *FileLoader) Load(target any) error {
	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := stderrors.As(err, &notFound) || isNotExist(err)
		if !missing || !l.allowMissing {
			return errors.New(errors.CodeNotFound, "config file not found: %v", err)
		}
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return errors.New(errors.CodeUnknown, "config parse error: %v", err)
	}

	// 只为文件和环境变量未设置的字段补默认值
	if err := tag.ApplyDefaults(target); err != nil {
		return errors.New(errors.CodeUnknown, "failed to apply defaults: %v", err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return errors.New(errors.CodeInvalidInput, "config validation failed: %v", err)
		}
	}
	return nil
}

func (l *FileLoader) Watch(callback func()) error {
	l.viper.OnConfigChange(func(fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})
	l.viper.WatchConfig()
	return nil
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
