package confirm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"zufang/app/models/payment"
	"zufang/app/models/room"
	"zufang/app/repositories"
	"zufang/pkg/database"
	"zufang/pkg/vnpay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "testsecret"

func setupDB(t *testing.T) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:confirm_%s?mode=memory&cache=shared", name)
	database.Connect(sqlite.Open(dsn), gormlogger.Default.LogMode(gormlogger.Silent))
	database.SQLDB.SetMaxOpenConns(1)

	err := database.AutoMigrate([]interface{}{
		&payment.Payment{},
		&room.Reservation{},
	})
	require.NoError(t, err)
}

// recordingEffects 记录副作用投递的假实现
type recordingEffects struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (r *recordingEffects) PaymentCompleted(_ context.Context, p *payment.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, p.ID)
}

func (r *recordingEffects) PaymentFailed(_ context.Context, p *payment.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, p.ID)
}

func testConfig(apiURL string) vnpay.Config {
	return vnpay.Config{
		TmnCode:    "TESTTMN",
		HashSecret: testSecret,
		GatewayURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		APIURL:     apiURL,
	}
}

func newCoordinator(t *testing.T, policy Policy, apiURL string) (*Coordinator, *repositories.PaymentRepository, *recordingEffects) {
	t.Helper()
	setupDB(t)

	repo := repositories.NewPaymentRepository()
	effects := &recordingEffects{}
	cfg := testConfig(apiURL)
	coordinator := NewCoordinator(policy, cfg, vnpay.NewClient(cfg, 2*time.Second), repo, effects)
	return coordinator, repo, effects
}

func createPending(t *testing.T, repo *repositories.PaymentRepository, amount int64) *payment.Payment {
	t.Helper()
	p := &payment.Payment{
		Kind:        payment.KindRoomDeposit,
		SubjectID:   "room-101",
		UserID:      "user-1",
		AmountMinor: amount,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

// signedParams 构造一份验签通过的网关上报参数
func signedParams(txnRef, code string, wireAmount int64) map[string]string {
	params := map[string]string{
		"vnp_TxnRef":        txnRef,
		"vnp_ResponseCode":  code,
		"vnp_TransactionNo": "14400996",
		"vnp_Amount":        fmt.Sprintf("%d", wireAmount),
		"vnp_PayDate":       "20250301170000",
		"vnp_TmnCode":       "TESTTMN",
	}
	params[vnpay.FieldSecureHash] = vnpay.Sign(params, testSecret)
	return params
}

func TestResolveIPNCompletes(t *testing.T) {
	coordinator, _, effects := newCoordinator(t, PolicyQuery, "")
	repo := repositories.NewPaymentRepository()
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelIPN,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.True(t, result.SignatureOK)
	assert.Equal(t, payment.StatusCompleted, result.Payment.Status)
	assert.Equal(t, "14400996", *result.Payment.ProviderTxnID)
	assert.Equal(t, []string{p.ID}, effects.completed)

	// IPN 快照留痕
	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "00", stored.IPNSnapshot["vnp_ResponseCode"])
}

func TestResolveIPNBadSignatureNoWrite(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyQuery, "")
	p := createPending(t, repo, 2000000)

	params := signedParams(p.ID, "00", 200000000)
	params[vnpay.FieldSecureHash] = "deadbeef"

	result, err := coordinator.Resolve(context.Background(), Event{Channel: ChannelIPN, Params: params})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconclusive, result.Outcome)
	assert.False(t, result.SignatureOK)
	assert.Empty(t, effects.failed)

	// 来路不明的回调不产生任何写入
	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status)
	assert.Nil(t, stored.IPNSnapshot)
}

func TestResolveRedirectBadSignatureFails(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyRedirect, "")
	p := createPending(t, repo, 2000000)

	params := signedParams(p.ID, "00", 200000000)
	params[vnpay.FieldSecureHash] = "deadbeef"

	result, err := coordinator.Resolve(context.Background(), Event{Channel: ChannelRedirect, Params: params})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.False(t, result.SignatureOK)
	assert.Equal(t, []string{p.ID}, effects.failed)
}

func TestResolveUserCancelledFails(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyRedirect, "")
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "24", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "24", result.Payment.ProviderCode)
	assert.Equal(t, []string{p.ID}, effects.failed)
}

func TestResolveAmountMismatchFails(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyRedirect, "")
	p := createPending(t, repo, 2000000)

	// 上报金额只有一半
	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelIPN,
		Params:  signedParams(p.ID, "00", 100000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.True(t, result.AmountMismatch)
	assert.Equal(t, []string{p.ID}, effects.failed)
}

func TestResolveRedirectPolicyTrustsRedirect(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyRedirect, "")
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{p.ID}, effects.completed)
}

func TestResolveAsyncPolicyLeavesRedirectPending(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyAsync, "")
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconclusive, result.Outcome)
	assert.Empty(t, effects.completed)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status)
	// 回跳参数已留痕，等 IPN 定论
	assert.Equal(t, "00", stored.ReturnSnapshot["vnp_ResponseCode"])
}

// queryGatewayStub 返回指定 QueryDR 结果的网关假服务
func queryGatewayStub(t *testing.T, responseCode, txnStatus string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := map[string]string{
			"vnp_ResponseCode":      responseCode,
			"vnp_TransactionStatus": txnStatus,
			"vnp_TxnRef":            r.FormValue("vnp_TxnRef"),
			"vnp_Amount":            "200000000",
		}
		params[vnpay.FieldSecureHash] = vnpay.Sign(params, testSecret)

		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprint(w, values.Encode())
	}))
}

func TestResolveQueryPolicyConfirmsThroughGateway(t *testing.T) {
	gateway := queryGatewayStub(t, "00", "00")
	defer gateway.Close()

	coordinator, repo, effects := newCoordinator(t, PolicyQuery, gateway.URL)
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{p.ID}, effects.completed)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "00", stored.QuerySnapshot["vnp_ResponseCode"])
}

func TestResolveQueryPolicyGatewayRejects(t *testing.T) {
	gateway := queryGatewayStub(t, "02", "02")
	defer gateway.Close()

	coordinator, repo, effects := newCoordinator(t, PolicyQuery, gateway.URL)
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, []string{p.ID}, effects.failed)
}

func TestResolveQueryPolicyGatewayUnreachable(t *testing.T) {
	// 不可达的对账地址，交易保持未决
	coordinator, repo, effects := newCoordinator(t, PolicyQuery, "http://127.0.0.1:1/querydr")
	p := createPending(t, repo, 2000000)

	result, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconclusive, result.Outcome)
	assert.Empty(t, effects.completed)
	assert.Empty(t, effects.failed)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status)
}

func TestResolveDuplicateEventKeepsFirstOutcome(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyQuery, "")
	p := createPending(t, repo, 2000000)

	first, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelIPN,
		Params:  signedParams(p.ID, "00", 200000000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, first.Outcome)

	// 迟到的取消回跳不能翻案
	second, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelRedirect,
		Params:  signedParams(p.ID, "24", 200000000),
	})
	require.NoError(t, err)
	assert.True(t, second.AlreadyTerminal)
	assert.Equal(t, OutcomeCompleted, second.Outcome)
	assert.Empty(t, effects.failed)
	assert.Equal(t, []string{p.ID}, effects.completed)
}

func TestResolveUnknownPayment(t *testing.T) {
	coordinator, _, _ := newCoordinator(t, PolicyQuery, "")

	_, err := coordinator.Resolve(context.Background(), Event{
		Channel: ChannelIPN,
		Params:  signedParams("PAY0000404", "00", 200000000),
	})
	assert.ErrorIs(t, err, repositories.ErrPaymentNotFound)
}

func TestResolvePendingFromSnapshot(t *testing.T) {
	coordinator, repo, effects := newCoordinator(t, PolicyRedirect, "")
	p := createPending(t, repo, 2000000)

	// async 场景：回跳只留了痕
	require.NoError(t, repo.SaveSnapshot(context.Background(), p.ID, "redirect",
		signedParams(p.ID, "00", 200000000)))
	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)

	result, err := coordinator.ResolvePending(context.Background(), stored, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{p.ID}, effects.completed)
}

func TestResolvePendingKeepsSnapshotSlotsSeparate(t *testing.T) {
	// query 策略下回放回跳快照不得占用 query 槽位，
	// query_snapshot 只存 QueryDR 的对账响应
	coordinator, repo, _ := newCoordinator(t, PolicyQuery, "http://127.0.0.1:1")
	p := createPending(t, repo, 2000000)

	returnParams := signedParams(p.ID, "00", 200000000)
	require.NoError(t, repo.SaveSnapshot(context.Background(), p.ID, "redirect", returnParams))
	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)

	// 网关不可达，支付保持 pending
	result, err := coordinator.ResolvePending(context.Background(), stored, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconclusive, result.Outcome)

	stored, err = repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.QuerySnapshot)
	assert.Equal(t, returnParams["vnp_TransactionNo"], stored.ReturnSnapshot["vnp_TransactionNo"])
}

func TestResolvePendingWithoutSnapshot(t *testing.T) {
	coordinator, repo, _ := newCoordinator(t, PolicyQuery, "")
	p := createPending(t, repo, 2000000)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)

	result, err := coordinator.ResolvePending(context.Background(), stored, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconclusive, result.Outcome)
}
