package config

import "zufang/pkg/config"

func init() {
	config.Add("services", func() map[string]interface{} {
		return map[string]interface{}{
			// 服务间调用的共享密钥，随 X-Internal-Api-Key 头上送
			"internal_key": config.Env("INTERNAL_API_KEY", ""),

			// 下游服务请求超时（秒）
			"timeout_seconds": config.Env("SERVICES_TIMEOUT", 5),

			// 各下游服务地址
			"room_url":         config.Env("ROOM_SERVICE_URL", "http://localhost:8001"),
			"booking_url":      config.Env("BOOKING_SERVICE_URL", "http://localhost:8002"),
			"bill_url":         config.Env("BILL_SERVICE_URL", "http://localhost:8003"),
			"contract_url":     config.Env("CONTRACT_SERVICE_URL", "http://localhost:8004"),
			"notification_url": config.Env("NOTIFICATION_SERVICE_URL", "http://localhost:8005"),
		}
	})
}
