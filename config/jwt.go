package config

import "zufang/pkg/config"

func init() {
	config.Add("jwt", func() map[string]interface{} {
		return map[string]interface{}{
			// 与用户服务共享的签名密钥
			"secret": config.Env("JWT_SECRET", ""),
		}
	})
}
