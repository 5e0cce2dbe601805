package types

import (
	"context"
	"errors"
)

var (
	ErrProviderNotConfigured   = errors.New("price provider not configured and no cached value")
	ErrNetwork                 = errors.New("price provider unreachable and no cached value")
	ErrBroker                  = errors.New("brokerage call failed")
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
	ErrValidation              = errors.New("invalid trade proposal")
	ErrCacheIO                 = errors.New("price cache i/o failed")
	ErrDecisionPolicyTimeout   = errors.New("decision policy timed out")
	ErrCanceled                = errors.New("canceled before processing")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrProviderNotConfigured, "ProviderNotConfigured"},
	{ErrNetwork, "NetworkError"},
	{ErrBroker, "BrokerError"},
	{ErrInsufficientBuyingPower, "InsufficientBuyingPower"},
	{ErrValidation, "ValidationError"},
	{ErrCacheIO, "CacheIOError"},
	{ErrDecisionPolicyTimeout, "DecisionPolicyTimeout"},
	{ErrCanceled, "Canceled"},
}

// KindOf names the error category of err for reports. Unknown errors are
// "Internal"; a nil error is "".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	return "Internal"
}
