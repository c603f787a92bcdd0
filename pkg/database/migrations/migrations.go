package migrations

import (
	"zufang/app/models/payment"
	"zufang/app/models/room"
)

// RegisterTables 返回需要迁移的表的模型列表
func RegisterTables() []interface{} {
	return []interface{}{
		&payment.Payment{},
		&room.Reservation{},
	}
}
