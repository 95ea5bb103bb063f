package internaldefs

import (
	"github.com/MrEthical07/pmscanauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   pmscanauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   pmscanauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: pmscanauth.MetricLoginSuccess, Name: "pmscanauth_login_success_total", Help: "Successful logins."},
	{ID: pmscanauth.MetricLoginFailure, Name: "pmscanauth_login_failure_total", Help: "Failed logins."},
	{ID: pmscanauth.MetricLoginRateLimited, Name: "pmscanauth_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: pmscanauth.MetricRefreshSuccess, Name: "pmscanauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: pmscanauth.MetricRefreshFailure, Name: "pmscanauth_refresh_failure_total", Help: "Failed refreshes."},
	{ID: pmscanauth.MetricRefreshRotated, Name: "pmscanauth_refresh_rotated_total", Help: "Refresh tokens replaced on use."},
	{ID: pmscanauth.MetricLogout, Name: "pmscanauth_logout_total", Help: "Logout calls."},
	{ID: pmscanauth.MetricLogoutStoreError, Name: "pmscanauth_logout_store_error_total", Help: "Logouts whose revoke hit a store error."},
	{ID: pmscanauth.MetricPasswordResetRequest, Name: "pmscanauth_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: pmscanauth.MetricPasswordResetUnknownEmail, Name: "pmscanauth_password_reset_unknown_email_total", Help: "Forgot-password requests for unknown emails."},
	{ID: pmscanauth.MetricPasswordResetThrottled, Name: "pmscanauth_password_reset_throttled_total", Help: "Forgot-password requests over the per-email budget."},
	{ID: pmscanauth.MetricPasswordResetMailFailure, Name: "pmscanauth_password_reset_mail_failure_total", Help: "Reset mails that failed to send."},
	{ID: pmscanauth.MetricPasswordResetStoreFailure, Name: "pmscanauth_password_reset_store_failure_total", Help: "Reset records that failed to persist."},
	{ID: pmscanauth.MetricPasswordResetConfirmSuccess, Name: "pmscanauth_password_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: pmscanauth.MetricPasswordResetConfirmFailure, Name: "pmscanauth_password_reset_confirm_failure_total", Help: "Failed password resets."},
	{ID: pmscanauth.MetricAuthenticateSuccess, Name: "pmscanauth_authenticate_success_total", Help: "Accepted access tokens."},
	{ID: pmscanauth.MetricAuthenticateFailure, Name: "pmscanauth_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: pmscanauth.MetricStoreUnavailable, Name: "pmscanauth_store_unavailable_total", Help: "Token store failures."},
	{ID: pmscanauth.MetricDigestUpgraded, Name: "pmscanauth_digest_upgraded_total", Help: "Password digests rehashed on login."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: pmscanauth.MetricAuthenticateLatency, Name: "pmscanauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for events the audit dispatcher dropped.
const AuditDroppedName = "pmscanauth_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more overflow bucket.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
