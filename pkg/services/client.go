// Package services 后台各协作服务的内部调用客户端
//
// 服务间调用走内网，凭 X-Internal-Api-Key 互信。
// 客户端只做传输与鉴权，业务语义由各自的方法表达。
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"zufang/pkg/config"
	"zufang/pkg/logger"
)

// 协作服务调用错误
var (
	// ErrServiceUnavailable 对端不可达或返回 5xx
	ErrServiceUnavailable = errors.New("internal service unavailable")
	// ErrNotFound 对端明确告知资源不存在
	ErrNotFound = errors.New("resource not found in internal service")
)

// internalKeyHeader 服务间互信头
const internalKeyHeader = "X-Internal-Api-Key"

// Client 内部服务 HTTP 客户端基座
type Client struct {
	name    string
	baseURL string
	http    *resty.Client
}

// NewClient 按服务名创建客户端，地址与密钥取配置
func NewClient(name, baseURL string) *Client {
	timeout := time.Duration(config.GetInt64("services.timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		name:    name,
		baseURL: baseURL,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader(internalKeyHeader, config.GetString("services.internal_key")),
	}
}

// get 发起内部 GET 请求，result 为响应 JSON 的落点
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.baseURL + path)
	return c.wrap(path, resp, err)
}

// post 发起内部 POST 请求
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(c.baseURL + path)
	return c.wrap(path, resp, err)
}

// put 发起内部 PUT 请求
func (c *Client) put(ctx context.Context, path string, body interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(c.baseURL + path)
	return c.wrap(path, resp, err)
}

// wrap 统一的响应检查与日志
func (c *Client) wrap(path string, resp *resty.Response, err error) error {
	if err != nil {
		logger.ErrorString("Services", c.name, fmt.Sprintf("请求失败 %s: %v", path, err))
		return fmt.Errorf("%s %s: %w", c.name, path, ErrServiceUnavailable)
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 404:
		return fmt.Errorf("%s %s: %w", c.name, path, ErrNotFound)
	case code >= 500:
		logger.ErrorString("Services", c.name, fmt.Sprintf("对端异常 %s 状态:%d", path, code))
		return fmt.Errorf("%s %s status %d: %w", c.name, path, code, ErrServiceUnavailable)
	default:
		return fmt.Errorf("%s %s: unexpected status %d", c.name, path, code)
	}
}
