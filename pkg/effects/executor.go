package effects

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"zufang/app/models/payment"
	"zufang/app/repositories"
	"zufang/pkg/services"
)

// Executor 执行具体的副作用动作
//
// 每个动作都必须幂等：占房的 confirm/release 天然幂等，
// 下游服务的回写由对端按 payment_id 去重
type Executor struct {
	rooms         *repositories.RoomRepository
	payments      *repositories.PaymentRepository
	bookings      *services.BookingClient
	bills         *services.BillClient
	notifications *services.NotificationClient
	contracts     *services.ContractClient
}

// NewExecutor 创建执行器
func NewExecutor() *Executor {
	return &Executor{
		rooms:         repositories.NewRoomRepository(),
		payments:      repositories.NewPaymentRepository(),
		bookings:      services.NewBookingClient(),
		bills:         services.NewBillClient(),
		notifications: services.NewNotificationClient(),
		contracts:     services.NewContractClient(),
	}
}

// Execute 执行一个任务
//
// 返回 nil 表示任务完成（包括幂等空操作）；返回错误则由
// 工作器按重试策略再投递
func (e *Executor) Execute(ctx context.Context, effect *Effect) error {
	switch effect.Kind {
	case KindRoomConfirm:
		return e.roomConfirm(ctx, effect)
	case KindRoomRelease:
		return e.roomRelease(ctx, effect)
	case KindBookingCreate:
		return e.bookingCreate(ctx, effect)
	case KindBookingUpdate:
		return e.bookingUpdate(ctx, effect)
	case KindContractCreate:
		return e.contractCreate(ctx, effect)
	case KindBillSettle:
		return e.billSettle(ctx, effect)
	case KindNotify:
		return e.notify(ctx, effect)
	}
	return fmt.Errorf("execute effect %s: unknown kind %q", effect.ID, effect.Kind)
}

func (e *Executor) roomConfirm(ctx context.Context, effect *Effect) error {
	err := e.rooms.Confirm(ctx, effect.Payload["room_id"], effect.PaymentID)
	// 占房已被他人持有说明本支付的占房早已过期释放，
	// 重试不会改变结果，补偿走人工/退款而不是队列
	if errors.Is(err, repositories.ErrPaymentMismatch) {
		return nil
	}
	return err
}

func (e *Executor) roomRelease(ctx context.Context, effect *Effect) error {
	err := e.rooms.Release(ctx, effect.Payload["room_id"], effect.PaymentID)
	if errors.Is(err, repositories.ErrPaymentMismatch) ||
		errors.Is(err, repositories.ErrReservationNotFound) {
		return nil
	}
	return err
}

func (e *Executor) bookingCreate(ctx context.Context, effect *Effect) error {
	deposit, _ := strconv.ParseInt(effect.Payload["deposit_minor"], 10, 64)
	return e.bookings.CreateFromPayment(ctx,
		effect.Payload["room_id"],
		effect.UserID,
		effect.Payload["check_in_date"],
		deposit,
		effect.PaymentID,
	)
}

func (e *Executor) bookingUpdate(ctx context.Context, effect *Effect) error {
	return e.bookings.UpdateDepositStatus(ctx,
		effect.Payload["booking_id"],
		effect.Payload["status"],
		effect.Payload["transaction_id"],
		effect.PaymentID,
	)
}

func (e *Executor) contractCreate(ctx context.Context, effect *Effect) error {
	return e.contracts.AutoCreate(ctx,
		effect.Payload["room_id"],
		effect.UserID,
		effect.PaymentID,
		effect.Payload["check_in_date"],
	)
}

// billSettle 重算账单已收总额，收齐则标记已支付
func (e *Executor) billSettle(ctx context.Context, effect *Effect) error {
	billID := effect.Payload["bill_id"]

	bill, err := e.bills.Get(ctx, billID, "")
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil
		}
		return err
	}
	if bill.Status == "paid" {
		return nil
	}

	collected, err := e.payments.TotalCollected(ctx, payment.KindBillPayment, billID)
	if err != nil {
		return err
	}
	if bill.TotalAmountMinor > 0 && collected >= bill.TotalAmountMinor {
		return e.bills.MarkPaid(ctx, billID)
	}
	return nil
}

func (e *Executor) notify(ctx context.Context, effect *Effect) error {
	metadata := map[string]string{"payment_id": effect.PaymentID}
	for _, key := range []string{"room_id", "booking_id", "bill_id", "type"} {
		if v := effect.Payload[key]; v != "" {
			metadata[key] = v
		}
	}
	return e.notifications.Send(ctx,
		effect.UserID,
		effect.Payload["title"],
		effect.Payload["message"],
		"payment",
		metadata,
	)
}
