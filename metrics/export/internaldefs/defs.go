// Package internaldefs holds the shared metric definitions used by the
// Prometheus and OTel exporters. It is not intended for direct use.
package internaldefs

import (
	authgate "github.com/authgate/authgate"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricFirstFactorSuccess, Name: "authgate_first_factor_success_total", Help: "Successful first-factor authentications."},
	{ID: authgate.MetricFirstFactorFailure, Name: "authgate_first_factor_failure_total", Help: "Failed first-factor authentications."},
	{ID: authgate.MetricFirstFactorRegulated, Name: "authgate_first_factor_regulated_total", Help: "First-factor attempts rejected by brute-force regulation."},
	{ID: authgate.MetricTOTPSuccess, Name: "authgate_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authgate.MetricTOTPFailure, Name: "authgate_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authgate.MetricTOTPRegistered, Name: "authgate_totp_registered_total", Help: "Completed TOTP registrations."},
	{ID: authgate.MetricDeviceSignSuccess, Name: "authgate_u2f_sign_success_total", Help: "Successful device assertion ceremonies."},
	{ID: authgate.MetricDeviceSignFailure, Name: "authgate_u2f_sign_failure_total", Help: "Failed device assertion ceremonies."},
	{ID: authgate.MetricDeviceRegistered, Name: "authgate_u2f_registered_total", Help: "Completed device registrations."},
	{ID: authgate.MetricDeviceRegisterFailure, Name: "authgate_u2f_register_failure_total", Help: "Failed device registration ceremonies."},
	{ID: authgate.MetricDuoSuccess, Name: "authgate_duo_success_total", Help: "Approved Duo push authentications."},
	{ID: authgate.MetricDuoFailure, Name: "authgate_duo_failure_total", Help: "Denied or failed Duo push authentications."},
	{ID: authgate.MetricTokenIssued, Name: "authgate_identity_token_issued_total", Help: "Issued identity verification tokens."},
	{ID: authgate.MetricTokenConsumed, Name: "authgate_identity_token_consumed_total", Help: "Consumed identity verification tokens."},
	{ID: authgate.MetricTokenRejected, Name: "authgate_identity_token_rejected_total", Help: "Rejected identity verification tokens."},
	{ID: authgate.MetricPasswordResetSuccess, Name: "authgate_password_reset_success_total", Help: "Completed password resets."},
	{ID: authgate.MetricPasswordResetFailure, Name: "authgate_password_reset_failure_total", Help: "Failed password resets."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout operations."},
	{ID: authgate.MetricAccessGranted, Name: "authgate_access_granted_total", Help: "Access checks that granted the request."},
	{ID: authgate.MetricAccessDenied, Name: "authgate_access_denied_total", Help: "Access checks that denied the request."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricFirstFactorLatency, Name: "authgate_first_factor_latency_seconds", Help: "First-factor authentication latency histogram."},
}

// HistogramBounds are the Prometheus le labels of the fixed buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe forms of the bucket bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
