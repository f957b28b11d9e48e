package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(t *testing.T, gatewayURL string) Credentials {
	k := loadKeys(t)
	return Credentials{
		AppID:      "2021000000000000",
		PrivateKey: k.pkcs8Raw,
		PublicKey:  k.publicRaw,
		Gateway:    gatewayURL,
		NotifyURL:  "https://example.com/api/v1/payments/alipay/notify",
		ReturnURL:  "https://example.com/",
	}
}

func fixedClient(timeout time.Duration) *Client {
	c := NewClient(timeout, nil)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC) }
	return c
}

// paramsOf flattens form values into the map the signer works on.
func paramsOf(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

func TestPayURL(t *testing.T) {
	creds := testCreds(t, "https://openapi.alipay.com/gateway.do")
	raw, err := fixedClient(time.Second).PayURL(creds, PayRequest{
		TradeNo: "ML1700000000ABCDEF",
		Amount:  decimal.RequireFromString("9.9"),
		Subject: "12 credits",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "openapi.alipay.com", u.Host)
	q := u.Query()
	assert.Equal(t, "alipay.trade.wap.pay", q.Get("method"))
	assert.Equal(t, "RSA2", q.Get("sign_type"))
	assert.Equal(t, "2024-03-02 00:30:00", q.Get("timestamp"))
	assert.Equal(t, creds.ReturnURL, q.Get("return_url"))
	assert.Equal(t, creds.NotifyURL, q.Get("notify_url"))

	var biz map[string]string
	require.NoError(t, json.Unmarshal([]byte(q.Get("biz_content")), &biz))
	assert.Equal(t, "ML1700000000ABCDEF", biz["out_trade_no"])
	assert.Equal(t, "9.90", biz["total_amount"])
	assert.Equal(t, "QUICK_WAP_WAY", biz["product_code"])

	assert.NoError(t, Verify(Canonicalize(paramsOf(q)), q.Get("sign"), creds.PublicKey))
}

func TestPayURL_NotConfigured(t *testing.T) {
	creds := testCreds(t, "https://openapi.alipay.com/gateway.do")
	creds.PrivateKey = ""
	_, err := fixedClient(time.Second).PayURL(creds, PayRequest{TradeNo: "ML1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPayURL_InvalidKey(t *testing.T) {
	creds := testCreds(t, "https://openapi.alipay.com/gateway.do")
	creds.PrivateKey = "bm90IGEga2V5"
	_, err := fixedClient(time.Second).PayURL(creds, PayRequest{TradeNo: "ML1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestQuery_Paid(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"alipay_trade_query_response":{"code":"10000","msg":"Success","out_trade_no":"ML1700000000ABCDEF","trade_status":"TRADE_SUCCESS","total_amount":"9.90"},"sign":"x"}`))
	}))
	defer srv.Close()

	creds := testCreds(t, srv.URL)
	res, err := fixedClient(time.Second).Query(context.Background(), creds, "ML1700000000ABCDEF")
	require.NoError(t, err)
	assert.True(t, res.Paid())
	assert.Equal(t, "9.90", res.TotalAmount)

	assert.Equal(t, "alipay.trade.query", got.Get("method"))
	assert.JSONEq(t, `{"out_trade_no":"ML1700000000ABCDEF"}`, got.Get("biz_content"))
	assert.NoError(t, Verify(Canonicalize(paramsOf(got)), got.Get("sign"), creds.PublicKey))
}

func TestQuery_NotPaid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"waiting", `{"alipay_trade_query_response":{"code":"10000","trade_status":"WAIT_BUYER_PAY"}}`},
		{"trade not exist", `{"alipay_trade_query_response":{"code":"40004","sub_code":"ACQ.TRADE_NOT_EXIST"}}`},
		{"success status with error code", `{"alipay_trade_query_response":{"code":"20000","trade_status":"TRADE_SUCCESS"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res, err := fixedClient(time.Second).Query(context.Background(), testCreds(t, srv.URL), "ML1")
			require.NoError(t, err)
			assert.False(t, res.Paid())
		})
	}
}

func TestQuery_Unavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := fixedClient(100*time.Millisecond).Query(context.Background(), testCreds(t, srv.URL), "ML1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
		})
	}
}

func TestQuery_NotConfigured(t *testing.T) {
	_, err := fixedClient(time.Second).Query(context.Background(), Credentials{}, "ML1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
