package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"github.com/vertextoedge/download-manager/internal/domain"
)

// errStalled is the cancellation cause used when a stream stops delivering data
var errStalled = errors.New("no data received within the request timeout")

// ClassifyTransportError maps a transport-level failure to a user-facing network error
func ClassifyTransportError(err error) *domain.TransferError {
	var msg string
	switch {
	case isTimeout(err):
		msg = "Connection timed out. Check your internet connection and try again."
	case isConnectError(err):
		msg = "Could not connect to server. Check your internet connection and try again."
	case isRequestError(err):
		msg = "Network request failed. Check your internet connection and try again."
	default:
		msg = fmt.Sprintf("Network error: %v. Check your connection and try again.", rootCause(err))
	}
	return domain.NewTransferError(domain.KindNetwork, msg, err)
}

// ClassifyStatus maps a non-accepted HTTP status to a user-facing error
func ClassifyStatus(code int) *domain.TransferError {
	te := domain.NewTransferError(domain.KindHTTPStatus, FormatHTTPError(code), fmt.Errorf("unexpected status %d", code))
	te.StatusCode = code
	return te
}

// FormatHTTPError returns the user-facing message for an HTTP status code
func FormatHTTPError(code int) string {
	switch {
	case code == 401 || code == 403:
		return "Authentication failed. Check your auth token in settings."
	case code == 404:
		return "File not found on server. The download link may have expired."
	case code == 429:
		return "Too many requests. Please wait a moment and try again."
	case code >= 500 && code <= 599:
		return "Server error. Please try again later."
	default:
		return fmt.Sprintf("Server returned error %d. Please try again.", code)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStalled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isRequestError reports failures of the request exchange itself that are
// not socket-level, such as an unsupported scheme or a redirect loop
func isRequestError(err error) bool {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}
	var opErr *net.OpError
	return !errors.As(err, &opErr)
}

func rootCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
