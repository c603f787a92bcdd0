package config

import "zufang/pkg/config"

func init() {
	config.Add("effects", func() map[string]interface{} {
		return map[string]interface{}{
			"worker_count":             config.Env("EFFECTS_WORKER_COUNT", 4),
			"max_retries":              config.Env("EFFECTS_MAX_RETRIES", 5),
			"retry_interval_seconds":   config.Env("EFFECTS_RETRY_INTERVAL", 10),
			"shutdown_timeout_seconds": config.Env("EFFECTS_SHUTDOWN_TIMEOUT", 30),

			// 队列键前缀与状态键有效期
			"queue_prefix":       config.Env("EFFECTS_QUEUE_PREFIX", "zufang"),
			"status_ttl_seconds": config.Env("EFFECTS_STATUS_TTL", 3600),

			// 入队速率上限（次/秒）
			"rate_limit": config.Env("EFFECTS_RATE_LIMIT", 500),

			// 占房押金到账后是否自动创建合同
			"auto_contract": config.Env("EFFECTS_AUTO_CONTRACT", false),
		}
	})
}
