package payment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JSON 存储网关原始参数的 map 类型，落库为 JSON 字段
type JSON map[string]string

// Value 实现 driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// GenerateID 生成支付单号，如 PAY3F2A9B1C04
// 在调用网关之前生成，作为网关侧 vnp_TxnRef
func GenerateID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "PAY" + strings.ToUpper(hex[:10])
}

// ValidKind 判断支付类型是否合法
func ValidKind(kind Kind) bool {
	switch kind {
	case KindBillPayment, KindBookingDeposit, KindRoomDeposit:
		return true
	}
	return false
}

// OrderInfo 按支付类型生成网关订单描述
// 描述会参与 QueryDR 签名，创建和对账必须使用同一份
func OrderInfo(kind Kind, subjectID string) string {
	switch kind {
	case KindRoomDeposit:
		return "Thanh toan coc giu phong " + subjectID
	case KindBookingDeposit:
		return "Thanh toan coc booking " + subjectID
	case KindBillPayment:
		return "Thanh toan hoa don " + subjectID
	}
	return "Thanh toan " + subjectID
}
