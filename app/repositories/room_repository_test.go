package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"zufang/app/models/room"
	"zufang/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomHoldThenConfirm(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusHeld, rsv.Status)
	assert.Equal(t, "user-1", *rsv.HolderID)
	assert.Equal(t, "PAY0000000001", *rsv.HoldingPaymentID)
	assert.NotNil(t, rsv.HeldSince)

	require.NoError(t, repo.Confirm(ctx, "room-101", "PAY0000000001"))
	rsv, err = repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusConfirmed, rsv.Status)
	assert.NotNil(t, rsv.ConfirmedAt)

	// 重复确认是无害的空操作
	require.NoError(t, repo.Confirm(ctx, "room-101", "PAY0000000001"))
}

func TestRoomHoldRejectsWhenTaken(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	err := repo.Hold(ctx, "room-101", "user-2", "PAY0000000002")
	assert.ErrorIs(t, err, ErrRoomNotAvailable)

	// 先到者的占用不受影响
	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, "PAY0000000001", *rsv.HoldingPaymentID)
}

func TestRoomConcurrentHoldSingleWinner(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Hold(ctx, "room-101", "user", "PAY000000000"+string(rune('A'+i)))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrRoomNotAvailable)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRoomConfirmWrongPayment(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))

	// 过期回调携带的支付号与当前持有者不符
	err := repo.Confirm(ctx, "room-101", "PAY0000000002")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusHeld, rsv.Status)
}

func TestRoomConfirmAfterSweepIsNoop(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	require.NoError(t, repo.Release(ctx, "room-101", "PAY0000000001"))

	// 占房已被释放且无人重占，迟到的确认按空操作处理
	require.NoError(t, repo.Confirm(ctx, "room-101", "PAY0000000001"))

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusAvailable, rsv.Status)
}

func TestRoomReleaseSemantics(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	require.NoError(t, repo.Release(ctx, "room-101", "PAY0000000001"))

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusAvailable, rsv.Status)
	assert.Nil(t, rsv.HolderID)
	assert.Nil(t, rsv.HoldingPaymentID)
	assert.Nil(t, rsv.HeldSince)

	// 重复释放无害
	require.NoError(t, repo.Release(ctx, "room-101", "PAY0000000001"))

	// 已确认的占房不能被释放
	require.NoError(t, repo.Hold(ctx, "room-101", "user-2", "PAY0000000002"))
	require.NoError(t, repo.Confirm(ctx, "room-101", "PAY0000000002"))
	err = repo.Release(ctx, "room-101", "PAY0000000002")
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestRoomReleaseWrongPayment(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	err := repo.Release(ctx, "room-101", "PAY0000000002")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusHeld, rsv.Status)
}

func TestRoomOccupyAndVacate(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	// 未确认不能入住
	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	err := repo.Occupy(ctx, "room-101", "contract-9")
	assert.ErrorIs(t, err, ErrRoomNotAvailable)

	require.NoError(t, repo.Confirm(ctx, "room-101", "PAY0000000001"))
	require.NoError(t, repo.Occupy(ctx, "room-101", "contract-9"))

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusOccupied, rsv.Status)
	assert.Equal(t, "contract-9", *rsv.ContractID)

	require.NoError(t, repo.Vacate(ctx, "room-101"))
	rsv, err = repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusAvailable, rsv.Status)
	assert.Nil(t, rsv.ContractID)

	// 空闲房间不能退房
	err = repo.Vacate(ctx, "room-101")
	assert.ErrorIs(t, err, ErrRoomNotAvailable)
}

func TestRoomReleaseExpired(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Hold(ctx, "room-101", "user-1", "PAY0000000001"))
	require.NoError(t, repo.Hold(ctx, "room-102", "user-2", "PAY0000000002"))
	require.NoError(t, repo.Hold(ctx, "room-103", "user-3", "PAY0000000003"))
	require.NoError(t, repo.Confirm(ctx, "room-103", "PAY0000000003"))

	// 把前两间的占房时间拨回十分钟前，第三间已确认不受清扫影响
	stale := time.Now().Add(-10 * time.Minute)
	err := database.DB.Model(&room.Reservation{}).
		Where("room_id IN ?", []string{"room-101", "room-102", "room-103"}).
		Update("held_since", stale).Error
	require.NoError(t, err)

	released, err := repo.ReleaseExpired(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"room-101", "room-102"}, released)

	rsv, err := repo.Get(ctx, "room-101")
	require.NoError(t, err)
	assert.Equal(t, room.StatusAvailable, rsv.Status)

	rsv, err = repo.Get(ctx, "room-103")
	require.NoError(t, err)
	assert.Equal(t, room.StatusConfirmed, rsv.Status)

	// 没有到期占房时清扫为空
	released, err = repo.ReleaseExpired(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestRoomGetNotFound(t *testing.T) {
	setupDB(t)
	repo := NewRoomRepository()

	_, err := repo.Get(context.Background(), "room-404")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}
