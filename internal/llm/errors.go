package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/ppiankov/reqtrace/internal/model"
)

// classifyStatus maps an HTTP status onto the transient/permanent split.
// errCode is the vendor error code or type, used to spot exhausted quotas.
func classifyStatus(provider string, status int, errCode string, err error) error {
	switch {
	case status == http.StatusTooManyRequests && strings.Contains(errCode, "insufficient_quota"):
		return &model.PermanentError{Provider: provider, StatusCode: status, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &model.TransientError{Provider: provider, StatusCode: status, Err: err}
	case status >= 400:
		return &model.PermanentError{Provider: provider, StatusCode: status, Err: err}
	}
	return classifyTransport(provider, err)
}

// classifyTransport classifies errors that carry no HTTP status
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if model.IsTransient(err) || model.IsPermanent(err) {
		return err
	}

	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled):
		// Cancellation is the caller's decision; retrying would ignore it.
		return &model.PermanentError{Provider: provider, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &model.TransientError{Provider: provider, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &model.TransientError{Provider: provider, Err: err}
	case errors.As(err, &urlErr):
		// Connection refused, reset, DNS hiccups
		return &model.TransientError{Provider: provider, Err: err}
	}
	return &model.PermanentError{Provider: provider, Err: err}
}

// classifyOpenAIError unwraps go-openai's error types
func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Type
		if s, ok := apiErr.Code.(string); ok {
			code = s + " " + code
		}
		return classifyStatus(provider, apiErr.HTTPStatusCode, code, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(provider, reqErr.HTTPStatusCode, string(reqErr.Body), err)
	}

	return classifyTransport(provider, err)
}

// classifyGenAIError unwraps the genai SDK's APIError
func classifyGenAIError(provider string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(provider, apiErr.Code, apiErr.Status, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(provider, apiErrPtr.Code, apiErrPtr.Status, err)
	}

	return classifyTransport(provider, err)
}
