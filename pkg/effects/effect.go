// Package effects saga 副作用调度
//
// 台账终态落定后的下游动作（占房确认/释放、预订回写、账单结清、
// 通知）都经由 Redis 队列异步执行：每个动作独立重试、彼此隔离、
// 永不回滚台账。所有动作幂等，重复投递是常态而不是异常。
package effects

import (
	"time"

	"github.com/google/uuid"

	"zufang/app/models/payment"
)

// Kind 副作用类型
type Kind string

const (
	// KindRoomConfirm 押金到账，占房转确认
	KindRoomConfirm Kind = "room_confirm"
	// KindRoomRelease 支付失败，释放占房
	KindRoomRelease Kind = "room_release"
	// KindBookingCreate 占房押金到账后生成预订记录
	KindBookingCreate Kind = "booking_create"
	// KindBookingUpdate 预订订金支付结果回写
	KindBookingUpdate Kind = "booking_update"
	// KindContractCreate 押金到账后自动生成合同草稿（可配置开关）
	KindContractCreate Kind = "contract_create"
	// KindBillSettle 账单收款后重算已收并按需结清
	KindBillSettle Kind = "bill_settle"
	// KindNotify 用户通知
	KindNotify Kind = "notify"
)

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Effect 一个待执行的副作用任务
type Effect struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	PaymentID string            `json:"payment_id"`
	UserID    string            `json:"user_id"`
	// Payload 各类型任务自用的参数
	Payload   map[string]string `json:"payload"`
	Attempts  int               `json:"attempts"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEffect 创建任务
func NewEffect(kind Kind, p *payment.Payment, payload map[string]string) *Effect {
	if payload == nil {
		payload = map[string]string{}
	}
	return &Effect{
		ID:        uuid.New().String(),
		Kind:      kind,
		PaymentID: p.ID,
		UserID:    p.UserID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
