package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 512

// DecodeResponse decodes a JSON response into the target structure. Non-2xx
// answers become an *errors.APIError attributed to provider.
func DecodeResponse(resp *http.Response, provider string, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("provider", provider).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return errors.NewAPIError(provider, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", provider+" response", err)
	}

	return nil
}
