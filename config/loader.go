package config

// Loader 配置加载器
type Loader interface {
	// Load 将配置写入 target
	Load(target any) error
	// Watch 监听配置变化，变化时调用 callback
	Watch(callback func()) error
}
