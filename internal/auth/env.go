package auth

import (
	"strings"

	"github.com/meililab/backend/internal/models"
)

var mobileKeywords = []string{
	"Android", "webOS", "iPhone", "iPad", "iPod", "BlackBerry",
	"Windows Phone", "Opera Mini", "IEMobile", "Mobile", "mobile",
}

// DetectEnv classifies the registering client from its User-Agent: the
// WeChat and QQ in-app browsers, other mobile browsers, and everything else.
func DetectEnv(userAgent string) string {
	if strings.Contains(userAgent, "MicroMessenger") {
		return models.EnvWeChat
	}
	// The QQ app's webview says "QQ/"; the standalone QQ browser says "MQQBrowser".
	if strings.Contains(userAgent, "QQ/") && !strings.Contains(userAgent, "MQQBrowser") {
		return models.EnvQQ
	}
	for _, k := range mobileKeywords {
		if strings.Contains(userAgent, k) {
			return models.EnvBrowser
		}
	}
	return models.EnvOther
}
