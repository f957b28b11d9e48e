package gateway

import (
	"net/url"
)

// Notification is an asynchronous payment notification posted by the gateway.
type Notification struct {
	TradeNo     string
	TradeStatus string
	TotalAmount string
	Sign        string
	Params      map[string]string
}

// ParseNotification flattens the posted form.
func ParseNotification(form url.Values) *Notification {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return &Notification{
		TradeNo:     params["out_trade_no"],
		TradeStatus: params["trade_status"],
		TotalAmount: params["total_amount"],
		Sign:        params["sign"],
		Params:      params,
	}
}

// Succeeded reports whether the notification announces a settled trade.
func (n *Notification) Succeeded() bool {
	return TradeSucceeded(n.TradeStatus)
}

// Verify checks the notification signature. Notifications exclude sign_type
// from the signed string in addition to sign.
func (n *Notification) Verify(publicKey string) error {
	params := make(map[string]string, len(n.Params))
	for k, v := range n.Params {
		if k == "sign_type" {
			continue
		}
		params[k] = v
	}
	return Verify(Canonicalize(params), n.Sign, publicKey)
}
