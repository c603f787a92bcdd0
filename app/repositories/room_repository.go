package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zufang/app/models/room"
	"zufang/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 房间占用错误
var (
	// ErrRoomNotAvailable 房间已被占用，先到先得，不排队
	ErrRoomNotAvailable = errors.New("room is not available")
	// ErrPaymentMismatch 操作携带的支付单号与当前持有支付不符
	// 用于挡住过期/重复回调对已被他人重新占用的房间的影响
	ErrPaymentMismatch = errors.New("payment does not hold this room")
	// ErrReservationNotFound 房间占用记录不存在
	ErrReservationNotFound = errors.New("room reservation not found")
)

// RoomRepository 房间占用状态仓库
//
// 所有状态流转都是单条条件更新（同时匹配当前状态和持有支付），
// 并发 hold/confirm/release 以及后台清扫互不串扰。
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 创建仓库实例
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		db: database.DB,
	}
}

// Get 获取房间占用记录
func (r *RoomRepository) Get(ctx context.Context, roomID string) (*room.Reservation, error) {
	var rsv room.Reservation
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&rsv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrReservationNotFound)
		}
		return nil, err
	}
	return &rsv, nil
}

// Hold 为一笔支付占住房间，先写入者得
//
// 首次接触的房间先补一条 available 记录（冲突忽略），
// 随后的条件更新只在 status = 'available' 时生效，
// 两个并发 hold 最多一个成功，失败方收到 ErrRoomNotAvailable
func (r *RoomRepository) Hold(ctx context.Context, roomID, holderID, paymentID string) error {
	seed := &room.Reservation{
		RoomID: roomID,
		Status: room.StatusAvailable,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&room.Reservation{}).
		Where("room_id = ? AND status = ?", roomID, room.StatusAvailable).
		Updates(map[string]interface{}{
			"status":             room.StatusHeld,
			"holder_id":          holderID,
			"holding_payment_id": paymentID,
			"held_since":         now,
			"confirmed_at":       nil,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("hold room %s for payment %s: %w", roomID, paymentID, ErrRoomNotAvailable)
	}
	return nil
}

// Confirm 押金到账后将占房转为已确认
//
// 只有当前持有支付才能确认；重复确认是无害的空操作。
// 房间已回到 available（占房被清扫且无人重占）时按空操作处理，
// 此时支付的补偿走退款通知而不是占房
func (r *RoomRepository) Confirm(ctx context.Context, roomID, paymentID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&room.Reservation{}).
		Where("room_id = ? AND holding_payment_id = ? AND status IN ?",
			roomID, paymentID, []room.Status{room.StatusHeld, room.StatusConfirmed}).
		Updates(map[string]interface{}{
			"status":       room.StatusConfirmed,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	rsv, err := r.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if rsv.Status == room.StatusAvailable {
		// 占房已过期释放且无人重占
		return nil
	}
	return fmt.Errorf("confirm room %s with payment %s: %w", roomID, paymentID, ErrPaymentMismatch)
}

// Release 支付失败/取消后释放占房
//
// 只释放由该支付持有、且尚未确认的占房；已经回到 available
// 的房间按空操作处理（重复释放无害）
func (r *RoomRepository) Release(ctx context.Context, roomID, paymentID string) error {
	result := r.db.WithContext(ctx).
		Model(&room.Reservation{}).
		Where("room_id = ? AND holding_payment_id = ? AND status = ?",
			roomID, paymentID, room.StatusHeld).
		Updates(releasedFields())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	rsv, err := r.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if rsv.Status == room.StatusAvailable {
		return nil
	}
	// 已确认的占房不能被回退，持有支付不符的同样拒绝
	return fmt.Errorf("release room %s with payment %s: %w", roomID, paymentID, ErrPaymentMismatch)
}

// Occupy 合同签订后入住，只允许从 confirmed 进入
func (r *RoomRepository) Occupy(ctx context.Context, roomID, contractID string) error {
	result := r.db.WithContext(ctx).
		Model(&room.Reservation{}).
		Where("room_id = ? AND status = ?", roomID, room.StatusConfirmed).
		Updates(map[string]interface{}{
			"status":      room.StatusOccupied,
			"contract_id": contractID,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("occupy room %s: %w", roomID, ErrRoomNotAvailable)
	}
	return nil
}

// Vacate 退房，房间回到可用状态
func (r *RoomRepository) Vacate(ctx context.Context, roomID string) error {
	result := r.db.WithContext(ctx).
		Model(&room.Reservation{}).
		Where("room_id = ? AND status = ?", roomID, room.StatusOccupied).
		Updates(releasedFields())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("vacate room %s: %w", roomID, ErrRoomNotAvailable)
	}
	return nil
}

// ReleaseExpired 释放超时未确认的占房，返回释放的房间号
//
// 先取候选再逐条条件更新：更新语句重新匹配
// status/holding_payment_id/held_since，与实时的 confirm 并发
// 执行也不会释放掉刚确认的占房
func (r *RoomRepository) ReleaseExpired(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)

	var candidates []room.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND held_since < ?", room.StatusHeld, cutoff).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	released := make([]string, 0, len(candidates))
	for _, rsv := range candidates {
		if rsv.HoldingPaymentID == nil {
			continue
		}
		result := r.db.WithContext(ctx).
			Model(&room.Reservation{}).
			Where("room_id = ? AND status = ? AND holding_payment_id = ? AND held_since < ?",
				rsv.RoomID, room.StatusHeld, *rsv.HoldingPaymentID, cutoff).
			Updates(releasedFields())
		if result.Error != nil {
			return released, result.Error
		}
		if result.RowsAffected > 0 {
			released = append(released, rsv.RoomID)
		}
	}
	return released, nil
}

// releasedFields 回到 available 状态时统一清空的字段
func releasedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":             room.StatusAvailable,
		"holder_id":          nil,
		"holding_payment_id": nil,
		"held_since":         nil,
		"confirmed_at":       nil,
		"contract_id":        nil,
		"updated_at":         time.Now(),
	}
}
