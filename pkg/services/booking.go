package services

import (
	"context"
	"fmt"

	"zufang/pkg/config"
)

// Booking 预订服务返回的预订信息（仅取本服务关心的字段）
type Booking struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	RoomID             string `json:"room_id"`
	DepositAmountMinor int64  `json:"deposit_amount"`
	DepositStatus      string `json:"deposit_status"`
	Status             string `json:"status"`
	CheckInDate        string `json:"check_in_date"`
}

// BookingClient 预订服务客户端
type BookingClient struct {
	*Client
}

// NewBookingClient 创建预订服务客户端
func NewBookingClient() *BookingClient {
	return &BookingClient{
		Client: NewClient("booking-service", config.GetString("services.booking_url")),
	}
}

// Get 获取预订详情，透传用户令牌做访问控制
func (c *BookingClient) Get(ctx context.Context, bookingID, bearerToken string) (*Booking, error) {
	var booking Booking
	req := c.http.R().SetContext(ctx).SetResult(&booking)
	if bearerToken != "" {
		req.SetHeader("Authorization", bearerToken)
	}
	resp, err := req.Get(c.baseURL + "/api/bookings/" + bookingID)
	if err := c.wrap("/api/bookings/"+bookingID, resp, err); err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateDepositStatus 回写预订的订金支付结果
func (c *BookingClient) UpdateDepositStatus(ctx context.Context, bookingID, status, txnID, paymentID string) error {
	body := map[string]string{"status": status}
	if txnID != "" {
		body["transaction_id"] = txnID
	}
	if paymentID != "" {
		body["payment_id"] = paymentID
	}
	return c.put(ctx, fmt.Sprintf("/api/bookings/%s/deposit-status", bookingID), body)
}

// CreateFromPayment 占房押金到账后生成预订记录
func (c *BookingClient) CreateFromPayment(ctx context.Context, roomID, userID, checkInDate string, depositMinor int64, paymentID string) error {
	body := map[string]interface{}{
		"room_id":            roomID,
		"user_id":            userID,
		"check_in_date":      checkInDate,
		"deposit_amount":     depositMinor,
		"deposit_status":     "paid",
		"deposit_payment_id": paymentID,
		"payment_method":     "vnpay",
		"status":             "deposit_paid",
	}
	return c.post(ctx, "/internal/bookings/create-from-payment", body, nil)
}
