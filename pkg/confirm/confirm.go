// Package confirm 支付确认协调器
//
// 网关有三条互不信任的上报渠道：浏览器回跳（redirect）、
// 服务端回调（ipn）、主动对账（query）。三条渠道可能乱序、
// 重复、互相竞争，协调器把它们折叠成对台账的一次单调流转，
// 并发安全最终由台账的条件更新兜底，不依赖渠道到达顺序。
package confirm

import (
	"errors"

	"zufang/pkg/vnpay"
)

// Channel 上报渠道
type Channel string

const (
	// ChannelRedirect 浏览器回跳，参数来自用户侧，可信度最低
	ChannelRedirect Channel = "redirect"
	// ChannelIPN 网关服务端回调，任何策略下都是权威渠道
	ChannelIPN Channel = "ipn"
	// ChannelQuery 主动对账轮询（verify 接口触发）
	ChannelQuery Channel = "query"
)

// Policy 确认策略，决定哪条渠道有权把支付置为 completed
type Policy string

const (
	// PolicyRedirect 信任验签通过的回跳，适合没有公网回调地址的部署
	PolicyRedirect Policy = "redirect"
	// PolicyAsync 回跳只留痕不定论，等 IPN
	PolicyAsync Policy = "async"
	// PolicyQuery 回跳/轮询必须经 QueryDR 对账通过才算数，默认策略
	PolicyQuery Policy = "query"
)

// ValidPolicy 判断策略取值是否合法
func ValidPolicy(p Policy) bool {
	switch p {
	case PolicyRedirect, PolicyAsync, PolicyQuery:
		return true
	}
	return false
}

// Outcome 单次事件折叠后的结论
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeInconclusive 本次事件不足以定论，支付保持 pending
	OutcomeInconclusive Outcome = "inconclusive"
)

// ErrSignatureInvalid 上报参数验签失败
var ErrSignatureInvalid = errors.New("gateway signature invalid")

// Event 一次渠道上报
type Event struct {
	Channel Channel
	// Params 网关原始参数（vnp_* 全集，含签名）
	Params map[string]string
	// ClientIP 触发本次处理的请求来源，QueryDR 需要
	ClientIP string
}

// TxnRef 事件指向的支付单号
func (e Event) TxnRef() string {
	return e.Params["vnp_TxnRef"]
}

// ResponseCode 网关返回码
func (e Event) ResponseCode() string {
	return e.Params["vnp_ResponseCode"]
}

// TransactionNo 网关侧交易号
func (e Event) TransactionNo() string {
	return e.Params["vnp_TransactionNo"]
}

// TransactionDate QueryDR 需要的原交易时间
// 回跳参数里优先取支付完成时间
func (e Event) TransactionDate() string {
	for _, key := range []string{"vnp_PayDate", "vnp_TransactionDate", "vnp_CreateDate"} {
		if v := e.Params[key]; v != "" {
			return v
		}
	}
	return ""
}

// classify 只看验签结果和返回码的纯判定，不关心策略
//
//	验签失败            → failed（ErrSignatureInvalid）
//	"00"               → 成功声明，是否采信交给策略
//	"24"（用户取消）    → failed
//	其他码             → failed
func classify(params map[string]string, secret string) (Outcome, error) {
	if !vnpay.Verify(params, secret) {
		return OutcomeFailed, ErrSignatureInvalid
	}
	if params["vnp_ResponseCode"] == vnpay.CodeSuccess {
		return OutcomeCompleted, nil
	}
	return OutcomeFailed, nil
}
