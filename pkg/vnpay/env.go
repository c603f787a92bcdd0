package vnpay

import (
	"zufang/pkg/config"
)

// ConfigFromEnv 从配置装载网关参数
func ConfigFromEnv() Config {
	return Config{
		TmnCode:    config.GetString("vnpay.tmn_code"),
		HashSecret: config.GetString("vnpay.hash_secret"),
		GatewayURL: config.GetString("vnpay.gateway_url"),
		APIURL:     config.GetString("vnpay.api_url"),
		ReturnURL:  config.GetString("vnpay.return_url"),
		IPNURL:     config.GetString("vnpay.ipn_url"),
	}
}
