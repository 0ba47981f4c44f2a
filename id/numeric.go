package id

import (
	"fmt"
	"strconv"
)

// ServiceID is the dense numeric identifier of a catalog service.
// Ids are 1-based store-assigned counters and are never reused, even after a
// service is deactivated. The zero value means "unassigned".
type ServiceID uint64

func (i ServiceID) String() string { return strconv.FormatUint(uint64(i), 10) }

// IsZero reports whether the id is unassigned.
func (i ServiceID) IsZero() bool { return i == 0 }

// ParseServiceID parses a decimal service id string.
func ParseServiceID(s string) (ServiceID, error) {
	v, err := parseNumeric("service", s)
	return ServiceID(v), err
}

// SubscriptionID is the dense numeric identifier of a subscription.
// Same counter semantics as ServiceID.
type SubscriptionID uint64

func (i SubscriptionID) String() string { return strconv.FormatUint(uint64(i), 10) }

// IsZero reports whether the id is unassigned.
func (i SubscriptionID) IsZero() bool { return i == 0 }

// ParseSubscriptionID parses a decimal subscription id string.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	v, err := parseNumeric("subscription", s)
	return SubscriptionID(v), err
}

// StreamID is the dense numeric identifier of a payment stream.
// Same counter semantics as ServiceID.
type StreamID uint64

func (i StreamID) String() string { return strconv.FormatUint(uint64(i), 10) }

// IsZero reports whether the id is unassigned.
func (i StreamID) IsZero() bool { return i == 0 }

// ParseStreamID parses a decimal stream id string.
func ParseStreamID(s string) (StreamID, error) {
	v, err := parseNumeric("stream", s)
	return StreamID(v), err
}

func parseNumeric(kind, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id: parse %s id %q: %w", kind, s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("id: parse %s id %q: ids are 1-based", kind, s)
	}
	return v, nil
}
