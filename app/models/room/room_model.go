package room

import (
	"time"
)

// Status 房间占用状态
//
// 状态机（单向，按押金支付驱动）：
//
//	available --hold--> held --confirm--> confirmed --occupy--> occupied
//	               held --release/超时清扫--> available
//	                              occupied --vacate--> available
type Status string

const (
	StatusAvailable Status = "available"
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
	StatusOccupied  Status = "occupied"
)

// Reservation 房间的预订占用状态
//
// 房间的其余属性（价格、押金、描述等）归房源服务管理，
// 本服务只持有与押金支付 saga 相关的占用字段。
// 同一时刻一间房最多被一笔支付持有，confirm/release 必须
// 携带与持有支付一致的支付单号才能生效。
type Reservation struct {
	RoomID string `gorm:"primaryKey;type:varchar(64)" json:"room_id"`
	Status Status `gorm:"type:varchar(16);index" json:"status"`

	// 当前持有人（租客/用户），空闲时为空
	HolderID *string `gorm:"type:varchar(36)" json:"holder_id"`
	// 持有本房间的支付单号，空闲时为空
	HoldingPaymentID *string `gorm:"type:varchar(32);index" json:"holding_payment_id"`
	// 占房开始时间，供超时清扫使用
	HeldSince *time.Time `json:"held_since"`
	// 押金确认时间
	ConfirmedAt *time.Time `json:"confirmed_at"`
	// 入住后关联的合同号
	ContractID *string `gorm:"type:varchar(64)" json:"contract_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Reservation) TableName() string {
	return "room_reservations"
}
