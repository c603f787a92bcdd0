// Package vnpay 封装 VNPay 网关的签名协议
//
// 签名规则：参数按键名升序排列后做 form 编码（空格编码为 +），
// 使用商户密钥做 HMAC-SHA512，参与签名的字段不包含
// vnp_SecureHash 和 vnp_SecureHashType 两个字段本身。
// 同一套编码逻辑复用于支付链接构造、回调验签和主动对账请求。
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 协议常量
const (
	Version      = "2.1.0"
	CommandPay   = "pay"
	CommandQuery = "querydr"
	CurrencyVND  = "VND"

	// FieldSecureHash 签名字段，不参与签名计算
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
	HashTypeHMACSHA512  = "HmacSHA512"
)

// 网关返回码
const (
	// CodeSuccess 支付成功 / 对账成功
	CodeSuccess = "00"
	// CodeUserCancelled 用户在网关页面取消支付
	CodeUserCancelled = "24"
)

// 网关时间戳使用 GMT+7，格式 yyyyMMddHHmmss
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

const timeLayout = "20060102150405"

// Config VNPay 商户配置
type Config struct {
	TmnCode    string // 商户号
	HashSecret string // 签名密钥
	GatewayURL string // 收银台地址
	APIURL     string // QueryDR 接口地址
	ReturnURL  string // 浏览器回跳地址
	IPNURL     string // 服务器回调地址，可为空
}

// canonicalQuery 构造参与签名的规范化查询串
// Go 的 url.Values.Encode 本身就按键名升序且空格编码为 +，
// 与网关要求的编码一致；空值字段不参与签名
func canonicalQuery(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

// Sign 计算参数集的 HMAC-SHA512 签名（十六进制小写）
// 入参中若带有签名字段会被剔除后再计算
func Sign(params map[string]string, secret string) string {
	filtered := make(map[string]string, len(params))
	for k, v := range params {
		if k == FieldSecureHash || k == FieldSecureHashType {
			continue
		}
		filtered[k] = v
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonicalQuery(filtered)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验回调/回跳参数的签名
// 对所有字段（除签名字段外）重算签名，大小写不敏感比较
func Verify(params map[string]string, secret string) bool {
	if secret == "" {
		return false
	}

	secureHash := params[FieldSecureHash]
	if secureHash == "" {
		return false
	}

	expected := Sign(params, secret)
	return strings.EqualFold(expected, secureHash)
}

// PaymentURLRequest 支付链接参数
type PaymentURLRequest struct {
	TxnRef      string        // 支付单号，作为网关侧的交易引用
	AmountMinor int64         // 金额，最小货币单位
	OrderInfo   string        // 订单描述
	ClientIP    string        // 付款人 IP
	Locale      string        // 语言，默认 vn
	OrderType   string        // 订单类型，默认 other
	ExpireIn    time.Duration // 链接有效期，默认 15 分钟
	Now         time.Time     // 为空则取当前时间，测试用
}

// BuildPaymentURL 构造带签名的收银台跳转链接
// 金额上送为最小单位金额 ×100（网关协议约定）
func BuildPaymentURL(cfg Config, req PaymentURLRequest) string {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(gatewayZone)

	expireIn := req.ExpireIn
	if expireIn < time.Minute {
		expireIn = 15 * time.Minute
	}

	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	orderType := req.OrderType
	if orderType == "" {
		orderType = "other"
	}
	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(req.AmountMinor*100, 10),
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  orderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": now.Format(timeLayout),
		"vnp_ExpireDate": now.Add(expireIn).Format(timeLayout),
	}
	if cfg.IPNURL != "" {
		params["vnp_IpnUrl"] = cfg.IPNURL
	}

	secureHash := Sign(params, cfg.HashSecret)

	// 最终链接带上签名类型字段，但该字段不参与签名
	params[FieldSecureHashType] = HashTypeHMACSHA512
	return cfg.GatewayURL + "?" + canonicalQuery(params) + "&" + FieldSecureHash + "=" + secureHash
}

// ParseWireAmount 解析网关上送的金额字段（×100）为最小单位金额
// 解析失败返回 0，由调用方按金额不符处理
func ParseWireAmount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n / 100
}
