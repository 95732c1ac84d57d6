package providerconf

import (
	"net/http"
	"time"

	"github.com/BaSui01/intelflow/internal/tlsutil"
)

// NewHTTPClient builds the shared outbound client: caller timeout first,
// provider default second. All provider traffic goes through the hardened
// TLS transport.
func NewHTTPClient(timeout, fallback time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = fallback
	}
	return tlsutil.SecureHTTPClient(timeout)
}

// ChooseModel selects the synthesis model to use based on priority:
// 1. Request model (if specified)
// 2. Config model (if specified in provider configuration)
// 3. Default model (provider-specific default)
func ChooseModel(reqModel, configModel, defaultModel string) string {
	if reqModel != "" {
		return reqModel
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}
