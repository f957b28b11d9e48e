package models

// app_config keys.
const (
	ConfigCommissionRate               = "commission_rate"
	ConfigReferralPointsEnabled        = "referral_points_enabled"
	ConfigManualConfirmRequiresGateway = "manual_confirm_requires_gateway"
	ConfigAlipayAppID                  = "alipay_app_id"
	ConfigAlipayPrivateKey             = "alipay_private_key"
	ConfigAlipayPublicKey              = "alipay_public_key"
	ConfigAlipayGateway                = "alipay_gateway"
	ConfigAlipayNotifyURL              = "alipay_notify_url"
)

// DefaultCommissionRate is the referral commission percentage used when none is configured.
const DefaultCommissionRate = 40

// Signup and referral reward amounts.
const (
	SignupBonusCredits    = 5
	ReferralRewardCredits = 1
	ReferralRewardPoints  = 1
)
