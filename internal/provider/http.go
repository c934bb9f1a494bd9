package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

const defaultProviderTimeout = 10 * time.Second

func newRestyClient(client *resty.Client, timeout time.Duration) *resty.Client {
	if client == nil {
		client = resty.New()
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(timeout)
	}
	client.SetRetryCount(0)
	return client
}

func validateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("provider base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid provider base url: %w", err)
	}
	return trimmed, nil
}

// execute runs the prepared request and turns transport/status failures into ProviderError.
func execute(ctx context.Context, channel domain.Channel, req *resty.Request, endpoint string) (*resty.Response, error) {
	response, err := req.SetContext(ctx).Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Channel:   channel,
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Channel:   channel,
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return response, nil
	}

	return nil, &ProviderError{
		Channel:    channel,
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
