package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when transient failures outlast MaxRetries.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRateLimitExhausted is returned when the provider keeps answering 429
	// beyond MaxRateLimitRetries.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

	// ErrContextCancelled is returned when the context ends while waiting.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoGames is returned when a player has no game log for the season.
	ErrNoGames = errors.New("no game stats found")

	// ErrMalformedResponse is returned when a 200 body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a non-success provider response.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tank01 %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("tank01 %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyError categorizes a response or transport error.
func classifyError(statusCode int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry reports whether a failure is transient. Rate limits are
// handled separately via Retry-After.
func shouldRetry(errorClass ErrorClass, statusCode int) bool {
	switch errorClass {
	case ErrorClassNetwork:
		return true
	case ErrorClassServer:
		switch statusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	default:
		return false
	}
}
