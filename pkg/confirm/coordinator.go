package confirm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"zufang/app/models/payment"
	"zufang/app/repositories"
	"zufang/pkg/logger"
	"zufang/pkg/vnpay"
)

// Effects 终态落定后的副作用投递口
// 实现必须幂等：同一笔支付的终态可能被多条渠道重复触发
type Effects interface {
	PaymentCompleted(ctx context.Context, p *payment.Payment)
	PaymentFailed(ctx context.Context, p *payment.Payment)
}

// Result 一次事件处理的结果
type Result struct {
	Payment *payment.Payment
	Outcome Outcome
	// SignatureOK 上报参数验签是否通过
	SignatureOK bool
	// AlreadyTerminal 事件到达时支付已经是终态（重复上报）
	AlreadyTerminal bool
	// AmountMismatch 上报金额与台账金额不一致
	AmountMismatch bool
}

// Coordinator 把渠道事件折叠为台账流转并投递副作用
type Coordinator struct {
	policy   Policy
	cfg      vnpay.Config
	querier  *vnpay.Client
	payments *repositories.PaymentRepository
	effects  Effects
}

// NewCoordinator 创建协调器
func NewCoordinator(policy Policy, cfg vnpay.Config, querier *vnpay.Client,
	payments *repositories.PaymentRepository, effects Effects) *Coordinator {
	if !ValidPolicy(policy) {
		policy = PolicyQuery
	}
	return &Coordinator{
		policy:   policy,
		cfg:      cfg,
		querier:  querier,
		payments: payments,
		effects:  effects,
	}
}

// Policy 当前生效的确认策略
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Resolve 处理一次渠道上报
//
// 支付不存在时返回 repositories.ErrPaymentNotFound；
// 验签失败的 IPN 不产生任何写入（来路不明的参数不配杀掉一笔支付），
// 验签失败的回跳把支付流转为 failed。
// 其余路径按 classify + 策略决定终态或保持 pending。
func (c *Coordinator) Resolve(ctx context.Context, event Event) (*Result, error) {
	txnRef := event.TxnRef()
	if txnRef == "" {
		return nil, fmt.Errorf("resolve %s event: %w", event.Channel, repositories.ErrPaymentNotFound)
	}

	p, err := c.payments.GetByID(ctx, txnRef)
	if err != nil {
		return nil, err
	}

	outcome, classifyErr := classify(event.Params, c.cfg.HashSecret)
	sigOK := !errors.Is(classifyErr, ErrSignatureInvalid)

	// 验签失败的 IPN 不留痕直接拒收
	if !sigOK && event.Channel == ChannelIPN {
		return &Result{Payment: p, Outcome: OutcomeInconclusive, SignatureOK: false}, nil
	}

	// 原始参数留痕，审计与 verify 轮询都依赖快照。
	// query 渠道的事件是 ResolvePending 回放已留痕的回跳参数，
	// 不再写快照，query 槽位只存 queryGateway 的对账响应
	if event.Channel != ChannelQuery {
		if err := c.payments.SaveSnapshot(ctx, p.ID, string(event.Channel), event.Params); err != nil {
			logger.LogWarnIf(err)
		}
	}

	if p.IsTerminal() {
		result := &Result{
			Payment:         p,
			Outcome:         Outcome(p.Status),
			SignatureOK:     sigOK,
			AlreadyTerminal: true,
		}
		return result, nil
	}

	if !sigOK {
		return c.settle(ctx, p, OutcomeFailed, event, &Result{SignatureOK: false})
	}

	if outcome == OutcomeFailed {
		return c.settle(ctx, p, OutcomeFailed, event, &Result{SignatureOK: true})
	}

	// 成功声明必须金额一致
	received := vnpay.ParseWireAmount(event.Params["vnp_Amount"])
	if received != p.AmountMinor {
		result := &Result{SignatureOK: true, AmountMismatch: true}
		return c.settle(ctx, p, OutcomeFailed, event, result)
	}

	decided, err := c.decide(ctx, p, event)
	if err != nil {
		return nil, err
	}
	if decided == OutcomeInconclusive {
		return &Result{Payment: p, Outcome: OutcomeInconclusive, SignatureOK: true}, nil
	}
	return c.settle(ctx, p, decided, event, &Result{SignatureOK: true})
}

// decide 验签通过且金额一致的成功声明按策略定夺
func (c *Coordinator) decide(ctx context.Context, p *payment.Payment, event Event) (Outcome, error) {
	// IPN 来自网关服务端，任何策略下直接采信
	if event.Channel == ChannelIPN {
		return OutcomeCompleted, nil
	}

	switch c.policy {
	case PolicyRedirect:
		return OutcomeCompleted, nil
	case PolicyAsync:
		// 回跳只留痕，等 IPN 定论
		return OutcomeInconclusive, nil
	default:
		return c.queryGateway(ctx, p, event)
	}
}

// queryGateway 以 QueryDR 对账结果定夺
//
// 对账通过 → completed；网关明确告知非成功 → failed；
// 网关不可达或响应存疑 → 保持 pending
func (c *Coordinator) queryGateway(ctx context.Context, p *payment.Payment, event Event) (Outcome, error) {
	txnDate := event.TransactionDate()
	if txnDate == "" {
		return OutcomeInconclusive, nil
	}

	verified, qdr, err := c.querier.QueryDR(ctx, vnpay.QueryRequest{
		TxnRef:          p.ID,
		OrderInfo:       payment.OrderInfo(p.Kind, p.SubjectID),
		TransactionDate: txnDate,
		ClientIP:        event.ClientIP,
		RequestID:       uuid.New().String(),
	})
	if err != nil {
		// 网关不可达不是交易失败的证据
		logger.ErrorString("Confirm", "QueryDR", fmt.Sprintf("支付:%s 错误:%v", p.ID, err))
		return OutcomeInconclusive, nil
	}

	if saveErr := c.payments.SaveSnapshot(ctx, p.ID, string(ChannelQuery), qdr); saveErr != nil {
		logger.LogWarnIf(saveErr)
	}

	if verified {
		return OutcomeCompleted, nil
	}

	// 响应验签通过且网关明确说交易失败，才视为失败证据
	if qdr[vnpay.FieldSecureHash] != "" && vnpay.Verify(qdr, c.cfg.HashSecret) {
		code := qdr["vnp_ResponseCode"]
		status := qdr["vnp_TransactionStatus"]
		if code != "" && code != vnpay.CodeSuccess {
			return OutcomeFailed, nil
		}
		if code == vnpay.CodeSuccess && status != "" && status != vnpay.CodeSuccess {
			return OutcomeFailed, nil
		}
	}
	return OutcomeInconclusive, nil
}

// settle 应用台账流转并投递副作用
func (c *Coordinator) settle(ctx context.Context, p *payment.Payment, outcome Outcome, event Event, result *Result) (*Result, error) {
	target := payment.StatusFailed
	if outcome == OutcomeCompleted {
		target = payment.StatusCompleted
	}

	change := &payment.Change{
		ProviderTxnID: event.TransactionNo(),
		ProviderCode:  event.ResponseCode(),
	}
	if target == payment.StatusCompleted {
		change.ReceivedAmountMinor = vnpay.ParseWireAmount(event.Params["vnp_Amount"])
	}

	stored, err := c.payments.Transition(ctx, p.ID, target, change)
	switch {
	case err == nil:
		// 本次事件赢得了流转，由赢家投递副作用
		c.dispatch(ctx, stored)
	case errors.Is(err, repositories.ErrAlreadyTerminal):
		// 并发渠道先一步定论，以已存状态为准
		result.AlreadyTerminal = true
	case errors.Is(err, repositories.ErrAmountMismatch):
		// 台账层兜底的金额检查，降级为失败流转
		result.AmountMismatch = true
		stored, err = c.payments.Transition(ctx, p.ID, payment.StatusFailed, &payment.Change{
			ProviderCode: event.ResponseCode(),
		})
		if err != nil && !errors.Is(err, repositories.ErrAlreadyTerminal) {
			return nil, err
		}
		c.dispatch(ctx, stored)
	default:
		// 唯一键冲突等硬错误中止流转，留给运维排查
		return nil, err
	}

	result.Payment = stored
	result.Outcome = Outcome(stored.Status)
	return result, nil
}

// dispatch 按终态投递副作用
func (c *Coordinator) dispatch(ctx context.Context, p *payment.Payment) {
	if c.effects == nil || p == nil {
		return
	}
	switch p.Status {
	case payment.StatusCompleted:
		c.effects.PaymentCompleted(ctx, p)
	case payment.StatusFailed:
		c.effects.PaymentFailed(ctx, p)
	}
}

// ResolvePending verify 轮询对 pending 支付的再判定
//
// redirect 策略用留存的回跳快照重放判定；query 策略用快照里的
// 交易时间走 QueryDR；async 策略不做任何主动动作，继续等 IPN。
// 没有任何快照时无从判定，保持 pending。
func (c *Coordinator) ResolvePending(ctx context.Context, p *payment.Payment, clientIP string) (*Result, error) {
	if p.IsTerminal() {
		return &Result{Payment: p, Outcome: Outcome(p.Status), SignatureOK: true, AlreadyTerminal: true}, nil
	}

	snapshot := map[string]string(p.ReturnSnapshot)
	if len(snapshot) == 0 {
		return &Result{Payment: p, Outcome: OutcomeInconclusive}, nil
	}

	switch c.policy {
	case PolicyAsync:
		return &Result{Payment: p, Outcome: OutcomeInconclusive, SignatureOK: true}, nil
	case PolicyRedirect:
		return c.Resolve(ctx, Event{Channel: ChannelRedirect, Params: snapshot, ClientIP: clientIP})
	default:
		return c.Resolve(ctx, Event{Channel: ChannelQuery, Params: snapshot, ClientIP: clientIP})
	}
}
