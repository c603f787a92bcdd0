package services

import (
	"context"
	"fmt"

	"zufang/pkg/config"
)

// Bill 账单服务返回的账单信息
type Bill struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	TotalAmountMinor int64  `json:"total_amount"`
	Status           string `json:"status"`
}

// BillClient 账单服务客户端
type BillClient struct {
	*Client
}

// NewBillClient 创建账单服务客户端
func NewBillClient() *BillClient {
	return &BillClient{
		Client: NewClient("bill-service", config.GetString("services.bill_url")),
	}
}

// Get 获取账单详情，透传用户令牌做访问控制
func (c *BillClient) Get(ctx context.Context, billID, bearerToken string) (*Bill, error) {
	var bill Bill
	req := c.http.R().SetContext(ctx).SetResult(&bill)
	if bearerToken != "" {
		req.SetHeader("Authorization", bearerToken)
	}
	resp, err := req.Get(c.baseURL + "/api/bills/" + billID)
	if err := c.wrap("/api/bills/"+billID, resp, err); err != nil {
		return nil, err
	}
	return &bill, nil
}

// MarkPaid 累计到账达到应付总额后把账单置为已支付
func (c *BillClient) MarkPaid(ctx context.Context, billID string) error {
	return c.put(ctx, fmt.Sprintf("/api/bills/%s/status", billID), map[string]string{
		"status": "paid",
	})
}
