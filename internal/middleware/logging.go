package middleware

import (
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
)

// Logging logs every tracker round-trip. Register with resty's OnAfterResponse.
// Failed responses are logged at warn level; the caller still decides what the
// failure means.
func Logging(logger arbor.ILogger) resty.ResponseMiddleware {
	return func(_ *resty.Client, resp *resty.Response) error {
		event := logger.Debug()
		if resp.IsError() {
			event = logger.Warn()
		}

		event.
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Jira request")
		return nil
	}
}
