package config

import "zufang/pkg/config"

func init() {
	config.Add("reservation", func() map[string]interface{} {
		return map[string]interface{}{
			// 占住未付款的房间多久后可被释放（分钟）
			"hold_timeout_minutes": config.Env("RESERVATION_HOLD_TIMEOUT", 15),

			// 后台定时清理间隔（秒），0 表示不启动定时清理
			"sweep_interval_seconds": config.Env("RESERVATION_SWEEP_INTERVAL", 300),
		}
	})
}
