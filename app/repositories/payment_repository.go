package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zufang/app/models/payment"
	"zufang/pkg/database"

	"gorm.io/gorm"
)

// 支付台账错误
var (
	// ErrInvalidAmount 创建金额必须为正
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrPaymentNotFound 支付单不存在
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrAlreadyTerminal 支付已进入终态，本次流转被忽略
	// 调用方应将其视为软错误：重复回调直接以已存状态应答
	ErrAlreadyTerminal = errors.New("payment already terminal")
	// ErrAmountMismatch 网关上报金额与创建金额不一致
	ErrAmountMismatch = errors.New("reported amount does not match payment amount")
	// ErrDuplicateProviderTxn 网关交易号已被其他支付单占用
	ErrDuplicateProviderTxn = errors.New("provider transaction id already recorded")
)

// PaymentRepository 支付台账仓库
//
// 台账是支付结果的唯一事实来源：状态单调（pending 只能进入
// completed/failed 之一且不可逆），网关交易号全局唯一。
// 终态流转通过条件更新完成，并发回调最多只有一个能成功。
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		db: database.DB,
	}
}

// Create 创建一条 pending 支付记录
// 支付单号在调用网关之前生成并落库
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if p.AmountMinor <= 0 {
		return fmt.Errorf("create payment for %s %s: %w", p.Kind, p.SubjectID, ErrInvalidAmount)
	}
	if !payment.ValidKind(p.Kind) {
		return fmt.Errorf("create payment: unknown kind %q", p.Kind)
	}

	if p.ID == "" {
		p.ID = payment.GenerateID()
	}
	if p.Status == "" {
		p.Status = payment.StatusPending
	}
	if p.Currency == "" {
		p.Currency = "VND"
	}
	if p.Provider == "" {
		p.Provider = "vnpay"
	}

	return r.db.WithContext(ctx).Create(p).Error
}

// GetByID 根据支付单号获取支付记录
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", id, ErrPaymentNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetByProviderTxnID 根据网关交易号获取支付记录
func (r *PaymentRepository) GetByProviderTxnID(ctx context.Context, txnID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("provider_txn_id = ?", txnID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("provider txn %s: %w", txnID, ErrPaymentNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// Transition 将 pending 支付流转到终态
//
// 条件更新 WHERE status = 'pending' 保证并发回调下最多一次生效。
// 已处于终态时返回已存记录和 ErrAlreadyTerminal（软错误）。
// target 为 completed 时校验上报金额；金额不一致返回
// ErrAmountMismatch，由调用方决定转为 failed。
func (r *PaymentRepository) Transition(ctx context.Context, id string, target payment.Status, change *payment.Change) (*payment.Payment, error) {
	if target != payment.StatusCompleted && target != payment.StatusFailed {
		return nil, fmt.Errorf("transition payment %s: invalid target status %q", id, target)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return current, ErrAlreadyTerminal
	}

	// 成功确认必须金额一致，防回调篡改
	if target == payment.StatusCompleted && change != nil &&
		change.ReceivedAmountMinor != current.AmountMinor {
		return current, fmt.Errorf("payment %s expects %d got %d: %w",
			id, current.AmountMinor, change.ReceivedAmountMinor, ErrAmountMismatch)
	}

	// 网关交易号唯一性预检，唯一索引兜底
	if change != nil && change.ProviderTxnID != "" {
		existing, err := r.GetByProviderTxnID(ctx, change.ProviderTxnID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return current, fmt.Errorf("provider txn %s held by payment %s: %w",
				change.ProviderTxnID, existing.ID, ErrDuplicateProviderTxn)
		}
	}

	updates := map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}
	if change != nil {
		if change.ProviderTxnID != "" {
			updates["provider_txn_id"] = change.ProviderTxnID
		}
		if change.ProviderCode != "" {
			updates["provider_code"] = change.ProviderCode
		}
		if change.ReceivedAmountMinor > 0 {
			updates["received_amount_minor"] = change.ReceivedAmountMinor
		}
	}

	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(updates)
	if result.Error != nil {
		// 唯一索引冲突说明两笔支付抢到了同一个网关交易号
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return current, fmt.Errorf("payment %s: %w", id, ErrDuplicateProviderTxn)
		}
		return nil, result.Error
	}

	// 没有命中说明另一条并发回调先完成了流转
	if result.RowsAffected == 0 {
		stored, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return stored, ErrAlreadyTerminal
	}

	return r.GetByID(ctx, id)
}

// SaveSnapshot 记录某个渠道最近一次上报的原始参数
// 快照仅作审计用途，不参与状态流转
func (r *PaymentRepository) SaveSnapshot(ctx context.Context, id string, channel string, params payment.JSON) error {
	column := ""
	switch channel {
	case "redirect":
		column = "return_snapshot"
	case "ipn":
		column = "ipn_snapshot"
	case "query":
		column = "query_snapshot"
	default:
		return fmt.Errorf("save snapshot for payment %s: unknown channel %q", id, channel)
	}

	return r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{column: params, "updated_at": time.Now()}).Error
}

// TotalCollected 统计某业务对象已完成支付的总额（最小单位）
// 分期/部分支付场景用于计算剩余应付
func (r *PaymentRepository) TotalCollected(ctx context.Context, kind payment.Kind, subjectID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("kind = ? AND subject_id = ? AND status = ?", kind, subjectID, payment.StatusCompleted).
		Select("COALESCE(SUM(amount_minor), 0)").
		Scan(&total).Error
	return total, err
}

// Delete 删除支付记录
// 仅用于创建流程中占房失败的立即回退，终态记录永不删除
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Delete(&payment.Payment{}).Error
}
