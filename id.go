package escrow

import "github.com/xraph/escrow/id"

// ServiceID identifies a catalog service.
type ServiceID = id.ServiceID

// SubscriptionID identifies a subscription ledger entry.
type SubscriptionID = id.SubscriptionID

// StreamID identifies a payment stream.
type StreamID = id.StreamID

// PaymentID identifies a journal record.
type PaymentID = id.PaymentID
