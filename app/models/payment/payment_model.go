package payment

import (
	"time"
)

// Kind 支付类型，同时决定 SubjectID 指向哪个业务对象
type Kind string

const (
	// KindBillPayment 账单支付，SubjectID 为账单 ID
	KindBillPayment Kind = "bill_payment"
	// KindBookingDeposit 预订订金，SubjectID 为预订 ID
	KindBookingDeposit Kind = "booking_deposit"
	// KindRoomDeposit 看房保证金（占房押金），SubjectID 为房间 ID
	KindRoomDeposit Kind = "room_reservation_deposit"
)

// Status 支付状态，单向流转：pending → completed / failed
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment 支付流水模型
//
// 一条记录对应一次向网关发起的收款尝试。终态不可变更，
// ProviderTxnID 全局唯一，用于防止网关侧同一笔交易的重复确认。
type Payment struct {
	ID        string `gorm:"primaryKey;type:varchar(32)" json:"id"`
	Kind      Kind   `gorm:"type:varchar(32);index:idx_payments_subject" json:"kind"`
	SubjectID string `gorm:"type:varchar(64);index:idx_payments_subject" json:"subject_id"`
	UserID    string `gorm:"type:varchar(36);index" json:"user_id"`

	AmountMinor int64  `gorm:"not null" json:"amount_minor"`
	Currency    string `gorm:"type:varchar(8)" json:"currency"`
	Provider    string `gorm:"type:varchar(20)" json:"provider"`
	Status      Status `gorm:"type:varchar(16);index" json:"status"`

	// 网关侧交易号，确认后写入，空值不参与唯一约束
	ProviderTxnID *string `gorm:"type:varchar(64);uniqueIndex" json:"provider_txn_id"`
	// 网关最后一次上报的返回码
	ProviderCode string `gorm:"type:varchar(8)" json:"provider_code"`
	// 终态时网关上报的到账金额（最小单位）
	ReceivedAmountMinor int64 `json:"received_amount_minor"`

	// 期望入住日期，仅占房押金使用
	CheckInDate string `gorm:"type:varchar(16)" json:"check_in_date,omitempty"`

	// 各渠道最近一次上报的原始参数，留作审计和重新验签
	// IPNSnapshot 显式指定列名，默认命名策略会把 IPN 拆成 ip_n
	ReturnSnapshot JSON `gorm:"type:json" json:"return_snapshot,omitempty"`
	IPNSnapshot    JSON `gorm:"column:ipn_snapshot;type:json" json:"ipn_snapshot,omitempty"`
	QuerySnapshot  JSON `gorm:"type:json" json:"query_snapshot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// IsTerminal 是否已进入终态
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// Change 终态流转时随渠道上报一并写入的字段
type Change struct {
	ProviderTxnID       string
	ProviderCode        string
	ReceivedAmountMinor int64
}
