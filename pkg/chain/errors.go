package chain

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/rpc"
)

// RangeTooLargeError is returned when a node rejects an eth_getLogs
// call because the requested range would return too many results; it
// carries the node's own suggested narrower range when available.
type RangeTooLargeError struct {
	Suggested          bool
	FromBlock, ToBlock uint64
	msg                string
}

func (e *RangeTooLargeError) Error() string {
	return e.msg
}

// RateLimitedError wraps a node's 429/"too many requests" rejection.
// retryWithBackoff caps retries of this class at rateLimitedMaxAttempts
// rather than the configured generic MaxAttempts.
type RateLimitedError struct {
	cause error
}

func (e *RateLimitedError) Error() string { return "rate limited: " + e.cause.Error() }
func (e *RateLimitedError) Unwrap() error { return e.cause }

// TransientError wraps a network hiccup, timeout, or temporary 5xx
// response. retryWithBackoff caps retries of this class at
// transientMaxAttempts rather than the configured generic MaxAttempts.
type TransientError struct {
	cause error
}

func (e *TransientError) Error() string { return "transient: " + e.cause.Error() }
func (e *TransientError) Unwrap() error { return e.cause }

var tooManyResultsRe = regexp.MustCompile(`Query returned more than \d+ results`)
var suggestedRangeRe = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)

// classifyLogsError inspects a GetLogs error and converts a node's
// "too many results" DataError into a typed RangeTooLargeError,
// optionally carrying the node's suggested narrower range.
func classifyLogsError(err error) error {
	if err == nil {
		return nil
	}

	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}

	errData := fmt.Sprintf("%v", dataErr.ErrorData())
	if !tooManyResultsRe.MatchString(errData) {
		return err
	}

	rte := &RangeTooLargeError{msg: fmt.Sprintf("range too large: %s", errData)}
	if m := suggestedRangeRe.FindStringSubmatch(errData); len(m) == 3 {
		from, err1 := parseHexUint64(m[1])
		to, err2 := parseHexUint64(m[2])
		if err1 == nil && err2 == nil {
			rte.Suggested = true
			rte.FromBlock, rte.ToBlock = from, to
		}
	}
	return rte
}

func parseHexUint64(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	return v, err
}
