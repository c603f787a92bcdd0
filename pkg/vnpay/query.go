package vnpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrGatewayUnreachable 网关请求失败（网络层）
var ErrGatewayUnreachable = errors.New("vnpay gateway unreachable")

// Client VNPay 主动对账（QueryDR）客户端
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient 创建对账客户端
// 网关调用走短超时，不在请求链路内做同步重试
func NewClient(cfg Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetTimeout(timeout),
	}
}

// QueryRequest QueryDR 请求参数
type QueryRequest struct {
	TxnRef          string // 原支付单号
	OrderInfo       string // 原订单描述
	TransactionDate string // 原交易时间 yyyyMMddHHmmss，通常取 vnp_PayDate
	ClientIP        string
	RequestID       string // 每次请求唯一
}

// BuildQueryPayload 构造带签名的 QueryDR 请求体
func BuildQueryPayload(cfg Config, req QueryRequest, now time.Time) map[string]string {
	if now.IsZero() {
		now = time.Now()
	}

	params := map[string]string{
		"vnp_RequestId":       req.RequestID,
		"vnp_Version":         Version,
		"vnp_Command":         CommandQuery,
		"vnp_TmnCode":         cfg.TmnCode,
		"vnp_TxnRef":          req.TxnRef,
		"vnp_OrderInfo":       req.OrderInfo,
		"vnp_TransactionDate": req.TransactionDate,
		"vnp_CreateDate":      now.In(gatewayZone).Format(timeLayout),
		"vnp_IpAddr":          req.ClientIP,
	}
	if params["vnp_IpAddr"] == "" {
		params["vnp_IpAddr"] = "127.0.0.1"
	}

	params[FieldSecureHash] = Sign(params, cfg.HashSecret)
	return params
}

// QueryDR 向网关查询交易的真实状态
//
// 返回 verified == true 仅当：响应签名有效（如有签名字段）、
// vnp_ResponseCode 与 vnp_TransactionStatus 均为成功码 "00"。
// 网络失败返回 ErrGatewayUnreachable，交易状态保持未决
func (c *Client) QueryDR(ctx context.Context, req QueryRequest) (bool, map[string]string, error) {
	if c.cfg.APIURL == "" {
		return false, nil, fmt.Errorf("query transaction %s: missing api url", req.TxnRef)
	}

	payload := BuildQueryPayload(c.cfg, req, time.Now())

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(payload).
		Post(c.cfg.APIURL)
	if err != nil {
		return false, nil, fmt.Errorf("query transaction %s: %w", req.TxnRef, ErrGatewayUnreachable)
	}

	params := parseResponse(resp)

	// 带签名的响应必须验签通过
	if params[FieldSecureHash] != "" && !Verify(params, c.cfg.HashSecret) {
		return false, params, nil
	}

	verified := params["vnp_ResponseCode"] == CodeSuccess &&
		params["vnp_TransactionStatus"] == CodeSuccess
	return verified, params, nil
}

// parseResponse 解析网关响应
// 网关常见返回 key=value&key2=value2 格式，部分环境返回 JSON
func parseResponse(resp *resty.Response) map[string]string {
	body := strings.TrimSpace(string(resp.Body()))
	params := make(map[string]string)

	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		// JSON 响应逐字段转为字符串
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(body), &data); err == nil {
			for k, v := range data {
				if v == nil {
					params[k] = ""
					continue
				}
				params[k] = fmt.Sprintf("%v", v)
			}
		}
		return params
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return params
	}
	for k := range values {
		params[k] = values.Get(k)
	}
	return params
}
