package licensing

// Feature identifiers embedded in license payloads and checked by the
// gateway at runtime.
const (
	// Pro features.
	FeatureOAuth                = "oauth"
	FeatureJWTJWKS              = "jwt_jwks"
	FeatureHTTPTransport        = "http_transport"
	FeatureSSETransport         = "sse_transport"
	FeaturePerIdentityRateLimit = "per_identity_rate_limit"

	// Enterprise features.
	FeatureMTLS               = "mtls"
	FeatureMultiServerRouting = "multi_server_routing"
	FeatureSIEMAudit          = "siem_audit"
	FeaturePerToolRateLimit   = "per_tool_rate_limit"
	FeatureOpenTelemetry      = "opentelemetry"
	FeatureAdminGuardTools    = "admin_guard_tools"
)

// TierFeatures maps each tier to its standard feature set. The issuer
// attaches these defaults when an issuance request does not override the
// feature list; verifiers only ever read what the payload carries.
var TierFeatures = map[Tier][]string{
	TierPro: {
		FeatureOAuth,
		FeatureJWTJWKS,
		FeatureHTTPTransport,
		FeatureSSETransport,
		FeaturePerIdentityRateLimit,
	},
	TierEnterprise: {
		FeatureOAuth,
		FeatureJWTJWKS,
		FeatureHTTPTransport,
		FeatureSSETransport,
		FeaturePerIdentityRateLimit,
		FeatureMTLS,
		FeatureMultiServerRouting,
		FeatureSIEMAudit,
		FeaturePerToolRateLimit,
		FeatureOpenTelemetry,
		FeatureAdminGuardTools,
	},
}

// DefaultFeatures returns a copy of the tier's standard feature set.
func DefaultFeatures(tier Tier) []string {
	features := TierFeatures[tier]
	out := make([]string, len(features))
	copy(out, features)
	return out
}

// TierHasFeature reports whether a tier's standard set includes a feature.
func TierHasFeature(tier Tier, feature string) bool {
	for _, f := range TierFeatures[tier] {
		if f == feature {
			return true
		}
	}
	return false
}

var featureDisplayNames = map[string]string{
	FeatureOAuth:                "OAuth 2.1 + PKCE authentication",
	FeatureJWTJWKS:              "JWT JWKS mode",
	FeatureHTTPTransport:        "HTTP upstream transport",
	FeatureSSETransport:         "SSE upstream transport",
	FeaturePerIdentityRateLimit: "Per-identity rate limiting",
	FeatureMTLS:                 "mTLS client certificates",
	FeatureMultiServerRouting:   "Multi-server routing",
	FeatureSIEMAudit:            "SIEM audit log shipping",
	FeaturePerToolRateLimit:     "Per-tool rate limiting",
	FeatureOpenTelemetry:        "OpenTelemetry tracing",
	FeatureAdminGuardTools:      "Admin guard tools",
}

// FeatureDisplayName returns a human-readable name for a feature
// identifier, falling back to the identifier itself.
func FeatureDisplayName(feature string) string {
	if name, ok := featureDisplayNames[feature]; ok {
		return name
	}
	return feature
}
