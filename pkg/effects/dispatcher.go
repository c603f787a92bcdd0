package effects

import (
	"context"
	"fmt"
	"strconv"

	"zufang/app/models/payment"
	"zufang/pkg/config"
	"zufang/pkg/logger"
)

// Dispatcher 把支付终态映射为一组副作用任务
//
// 投递失败只记日志：队列不可用不能阻塞或回滚已落定的台账，
// pending 的下游动作靠 verify 轮询的幂等重放兜底
type Dispatcher struct {
	queue *Queue
}

// NewDispatcher 创建投递器
func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// PaymentCompleted 支付完成后的副作用
func (d *Dispatcher) PaymentCompleted(ctx context.Context, p *payment.Payment) {
	switch p.Kind {
	case payment.KindRoomDeposit:
		d.push(ctx, NewEffect(KindRoomConfirm, p, map[string]string{
			"room_id": p.SubjectID,
		}))
		d.push(ctx, NewEffect(KindBookingCreate, p, map[string]string{
			"room_id":       p.SubjectID,
			"check_in_date": p.CheckInDate,
			"deposit_minor": strconv.FormatInt(p.AmountMinor, 10),
		}))
		if config.GetBool("effects.auto_contract") {
			d.push(ctx, NewEffect(KindContractCreate, p, map[string]string{
				"room_id":       p.SubjectID,
				"check_in_date": p.CheckInDate,
			}))
		}
		d.push(ctx, NewEffect(KindNotify, p, map[string]string{
			"room_id": p.SubjectID,
			"type":    "room_deposit",
			"title":   "Đặt cọc thành công",
			"message": "Bạn đã đặt cọc phòng thành công. Vui lòng vào 'Phòng của tôi' để xem chi tiết.",
		}))

	case payment.KindBookingDeposit:
		txnID := ""
		if p.ProviderTxnID != nil {
			txnID = *p.ProviderTxnID
		}
		d.push(ctx, NewEffect(KindBookingUpdate, p, map[string]string{
			"booking_id":     p.SubjectID,
			"status":         "paid",
			"transaction_id": txnID,
		}))
		d.push(ctx, NewEffect(KindNotify, p, map[string]string{
			"booking_id": p.SubjectID,
			"title":      "Thanh toán thành công",
			"message":    fmt.Sprintf("Tiền cọc booking %s đã được thanh toán thành công.", p.SubjectID),
		}))

	case payment.KindBillPayment:
		d.push(ctx, NewEffect(KindBillSettle, p, map[string]string{
			"bill_id": p.SubjectID,
		}))
		d.push(ctx, NewEffect(KindNotify, p, map[string]string{
			"bill_id": p.SubjectID,
			"title":   "Thanh toán thành công",
			"message": fmt.Sprintf("Hóa đơn %s đã được thanh toán thành công.", p.SubjectID),
		}))
	}
}

// PaymentFailed 支付失败后的补偿
func (d *Dispatcher) PaymentFailed(ctx context.Context, p *payment.Payment) {
	// 只有占房押金需要补偿：把占住的房间放回可用池
	if p.Kind == payment.KindRoomDeposit {
		d.push(ctx, NewEffect(KindRoomRelease, p, map[string]string{
			"room_id": p.SubjectID,
		}))
	}
}

func (d *Dispatcher) push(ctx context.Context, effect *Effect) {
	if err := d.queue.Push(ctx, effect); err != nil {
		logger.ErrorString("Effects", "Dispatch", fmt.Sprintf(
			"任务:%s 类型:%s 支付:%s 投递失败:%v",
			effect.ID, effect.Kind, effect.PaymentID, err))
	}
}
