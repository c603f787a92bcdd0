package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "ZKPI2R2IFEA4VIA1WMCMI65XQUMQHTWT"

func testConfig() Config {
	return Config{
		TmnCode:    "729I87YR",
		HashSecret: testSecret,
		GatewayURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		APIURL:     "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction",
		ReturnURL:  "http://localhost/v1/vnpay/return",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":       "PAY1234567890",
		"vnp_Amount":       "200000000",
		"vnp_ResponseCode": "00",
		"vnp_OrderInfo":    "Thanh toan coc giu phong ROOM01",
	}

	params[FieldSecureHash] = Sign(params, testSecret)
	assert.True(t, Verify(params, testSecret))

	// 签名大小写不敏感
	params[FieldSecureHash] = strings.ToUpper(params[FieldSecureHash])
	assert.True(t, Verify(params, testSecret))
}

func TestVerifyRejectsTamper(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":       "PAY1234567890",
		"vnp_Amount":       "200000000",
		"vnp_ResponseCode": "00",
	}
	params[FieldSecureHash] = Sign(params, testSecret)

	// 翻转任一字段的一个字符都必须导致验签失败
	params["vnp_Amount"] = "200000001"
	assert.False(t, Verify(params, testSecret))

	params["vnp_Amount"] = "200000000"
	assert.True(t, Verify(params, testSecret))

	params["vnp_ResponseCode"] = "24"
	assert.False(t, Verify(params, testSecret))
}

func TestVerifyMissingSignature(t *testing.T) {
	params := map[string]string{"vnp_TxnRef": "PAY1234567890"}
	assert.False(t, Verify(params, testSecret))
	assert.False(t, Verify(map[string]string{FieldSecureHash: "abc"}, ""))
}

func TestSignExcludesHashFields(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef": "PAY1234567890",
		"vnp_Amount": "100",
	}
	plain := Sign(params, testSecret)

	params[FieldSecureHash] = "whatever"
	params[FieldSecureHashType] = HashTypeHMACSHA512
	assert.Equal(t, plain, Sign(params, testSecret))
}

func TestBuildPaymentURL(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rawURL := BuildPaymentURL(testConfig(), PaymentURLRequest{
		TxnRef:      "PAYABCDEF0123",
		AmountMinor: 2000000,
		OrderInfo:   "Thanh toan coc giu phong ROOM01",
		ClientIP:    "10.0.0.8",
		ExpireIn:    15 * time.Minute,
		Now:         now,
	})

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "2.1.0", query.Get("vnp_Version"))
	assert.Equal(t, "pay", query.Get("vnp_Command"))
	// 金额上送为最小单位 ×100
	assert.Equal(t, "200000000", query.Get("vnp_Amount"))
	assert.Equal(t, "VND", query.Get("vnp_CurrCode"))
	assert.Equal(t, "PAYABCDEF0123", query.Get("vnp_TxnRef"))
	assert.Equal(t, "10.0.0.8", query.Get("vnp_IpAddr"))
	// 网关时间戳为 GMT+7
	assert.Equal(t, "20250301170000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20250301171500", query.Get("vnp_ExpireDate"))
	assert.NotEmpty(t, query.Get(FieldSecureHash))

	// 链接上的全部字段（除签名外）可以通过验签
	params := make(map[string]string)
	for k := range query {
		params[k] = query.Get(k)
	}
	assert.True(t, Verify(params, testSecret))
}

func TestBuildQueryPayload(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	payload := BuildQueryPayload(testConfig(), QueryRequest{
		TxnRef:          "PAYABCDEF0123",
		OrderInfo:       "Thanh toan coc giu phong ROOM01",
		TransactionDate: "20250301165959",
		ClientIP:        "10.0.0.8",
		RequestID:       "req-001",
	}, now)

	assert.Equal(t, "querydr", payload["vnp_Command"])
	assert.Equal(t, "req-001", payload["vnp_RequestId"])
	assert.Equal(t, "20250301170000", payload["vnp_CreateDate"])
	assert.True(t, Verify(payload, testSecret))
}

func TestParseWireAmount(t *testing.T) {
	assert.Equal(t, int64(2000000), ParseWireAmount("200000000"))
	assert.Equal(t, int64(0), ParseWireAmount("abc"))
	assert.Equal(t, int64(0), ParseWireAmount("-100"))
	assert.Equal(t, int64(0), ParseWireAmount(""))
}
