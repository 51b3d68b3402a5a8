package httpclient

import (
	"context"
	"errors"
	"net"
	"time"
)

// FailureKind classifies a failed attempt
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureDNSTemporary
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureDNSTemporary:
		return "dns_temporary"
	case FailureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Classify maps a transport error to its FailureKind
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return FailureDNSTemporary
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	return FailureOther
}

// RetryPolicy bounds how Send retries
type RetryPolicy struct {
	MaxAttempts int
	Retryable   []FailureKind
	Delay       time.Duration
	Timeout     time.Duration
}

// DefaultPolicy retries only temporary name-resolution failures
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Retryable:   []FailureKind{FailureDNSTemporary},
		Delay:       2 * time.Second,
		Timeout:     10 * time.Second,
	}
}

func (p RetryPolicy) retries(kind FailureKind) bool {
	for _, k := range p.Retryable {
		if k == kind {
			return true
		}
	}
	return false
}
