package config

// Initialize 触发本包各配置文件的 init() 注册
// main 中以 btsConfig.Initialize() 形式调用
func Initialize() {
	// 配置均通过 init() 挂载，这里无需额外逻辑
}
