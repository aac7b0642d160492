package httpmiddleware

import (
	"github.com/unrolled/secure"
)

// SecureConfig toggles the production-only parts of the security headers.
type SecureConfig struct {
	// HSTS adds Strict-Transport-Security. Enable only behind TLS.
	HSTS bool
	// Dev disables every check so local plain-HTTP runs are not redirected.
	Dev bool
}

// Secure sets the usual security headers on API responses.
func Secure(cfg SecureConfig) Middleware {
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Dev,
	}
	if cfg.HSTS {
		opts.STSSeconds = 31536000
		opts.STSIncludeSubdomains = true
	}
	return secure.New(opts).Handler
}
