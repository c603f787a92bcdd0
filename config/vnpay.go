package config

import "zufang/pkg/config"

func init() {
	config.Add("vnpay", func() map[string]interface{} {
		return map[string]interface{}{
			// 商户信息，由 VNPay 商户后台下发
			"tmn_code":    config.Env("VNPAY_TMN_CODE", ""),
			"hash_secret": config.Env("VNPAY_HASH_SECRET", ""),

			// 收银台与对账接口地址，沙箱环境默认值
			"gateway_url": config.Env("VNPAY_GATEWAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			"api_url":     config.Env("VNPAY_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),

			// 回调地址，必须是网关可达的公网地址
			"return_url": config.Env("VNPAY_RETURN_URL", ""),
			"ipn_url":    config.Env("VNPAY_IPN_URL", ""),

			// 浏览器回跳后的确认策略：redirect / async / query
			"confirm_policy": config.Env("VNPAY_CONFIRM_POLICY", "query"),

			// QueryDR 对账请求超时（秒）
			"query_timeout": config.Env("VNPAY_QUERY_TIMEOUT", 10),

			// 支付结束后重定向的前端页面
			"frontend_home_url": config.Env("FRONTEND_HOME_URL", "http://localhost:8080/user/home.html"),
			"frontend_bill_url": config.Env("FRONTEND_BILL_URL", "http://localhost:8080/user/bills.html"),
		}
	})
}
