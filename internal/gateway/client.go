package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured is returned when the app id or private key is missing.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrUnavailable wraps transport failures, timeouts and unreadable gateway responses.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Trade states reported by the gateway.
const (
	TradeStatusWaitBuyerPay = "WAIT_BUYER_PAY"
	TradeStatusClosed       = "TRADE_CLOSED"
	TradeStatusSuccess      = "TRADE_SUCCESS"
	TradeStatusFinished     = "TRADE_FINISHED"
)

// codeSuccess is the gateway's business success code.
const codeSuccess = "10000"

// timestampLayout is rendered in the gateway's local time (UTC+8).
const timestampLayout = "2006-01-02 15:04:05"

var gatewayZone = time.FixedZone("CST", 8*60*60)

// Credentials identify the merchant towards the gateway.
type Credentials struct {
	AppID      string
	PrivateKey string
	PublicKey  string
	Gateway    string
	NotifyURL  string
	ReturnURL  string
}

// Configured reports whether requests can be signed.
func (c Credentials) Configured() bool {
	return c.AppID != "" && c.PrivateKey != ""
}

// PayRequest describes a mobile web payment page.
type PayRequest struct {
	TradeNo   string
	Amount    decimal.Decimal
	Subject   string
	ReturnURL string
}

// QueryResult is the relevant part of a trade query response.
type QueryResult struct {
	Code        string `json:"code"`
	Msg         string `json:"msg"`
	SubCode     string `json:"sub_code"`
	TradeNo     string `json:"out_trade_no"`
	TradeStatus string `json:"trade_status"`
	TotalAmount string `json:"total_amount"`
}

// Paid reports whether the gateway confirmed the trade as settled.
func (q *QueryResult) Paid() bool {
	return q.Code == codeSuccess && TradeSucceeded(q.TradeStatus)
}

// TradeSucceeded reports whether status is a terminal success state.
func TradeSucceeded(status string) bool {
	return status == TradeStatusSuccess || status == TradeStatusFinished
}

// Client talks to the Alipay open API gateway.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewClient(timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// PayURL builds the signed alipay.trade.wap.pay redirect URL.
func (c *Client) PayURL(creds Credentials, req PayRequest) (string, error) {
	if !creds.Configured() {
		return "", ErrNotConfigured
	}
	biz, err := json.Marshal(map[string]string{
		"out_trade_no": req.TradeNo,
		"total_amount": req.Amount.StringFixed(2),
		"subject":      req.Subject,
		"product_code": "QUICK_WAP_WAY",
	})
	if err != nil {
		return "", err
	}
	params := c.commonParams(creds, "alipay.trade.wap.pay", string(biz))
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = creds.ReturnURL
	}
	params["return_url"] = returnURL
	params["notify_url"] = creds.NotifyURL

	values, err := signed(params, creds.PrivateKey)
	if err != nil {
		return "", err
	}
	return creds.Gateway + "?" + values.Encode(), nil
}

// Query asks the gateway for the current state of tradeNo. Transport errors,
// timeouts and malformed responses wrap ErrUnavailable.
func (c *Client) Query(ctx context.Context, creds Credentials, tradeNo string) (*QueryResult, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	biz, err := json.Marshal(map[string]string{"out_trade_no": tradeNo})
	if err != nil {
		return nil, err
	}
	values, err := signed(c.commonParams(creds, "alipay.trade.query", string(biz)), creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.Gateway, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var envelope struct {
		Response QueryResult `json:"alipay_trade_query_response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if envelope.Response.Code != codeSuccess {
		c.log.Info("trade query not successful", "trade_no", tradeNo, "code", envelope.Response.Code, "sub_code", envelope.Response.SubCode)
	}
	return &envelope.Response, nil
}

func (c *Client) commonParams(creds Credentials, method, bizContent string) map[string]string {
	return map[string]string{
		"app_id":      creds.AppID,
		"method":      method,
		"format":      "JSON",
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   c.now().In(gatewayZone).Format(timestampLayout),
		"version":     "1.0",
		"biz_content": bizContent,
	}
}

func signed(params map[string]string, privateKey string) (url.Values, error) {
	sig, err := Sign(Canonicalize(params), privateKey)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}
	values.Set("sign", sig)
	return values, nil
}
