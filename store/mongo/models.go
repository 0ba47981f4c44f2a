package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/service"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

// ==================== Role models ====================

type roleModel struct {
	Address string `bson:"_id"`
	Role    string `bson:"role"`
}

// ==================== Service models ====================

type serviceModel struct {
	ID                int64     `bson:"_id"`
	Provider          string    `bson:"provider"`
	Name              string    `bson:"name"`
	Description       string    `bson:"description"`
	Token             string    `bson:"token"`
	AmountPerCycle    int64     `bson:"amount_per_cycle"`
	FrequencyInBlocks int64     `bson:"frequency_in_blocks"`
	Active            bool      `bson:"active"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toServiceModel(svc *service.Service) *serviceModel {
	return &serviceModel{
		ID:                int64(svc.ID),
		Provider:          svc.Provider.String(),
		Name:              svc.Name,
		Description:       svc.Description,
		Token:             svc.Token,
		AmountPerCycle:    svc.AmountPerCycle,
		FrequencyInBlocks: int64(svc.FrequencyInBlocks),
		Active:            svc.Active,
		CreatedAt:         svc.CreatedAt,
		UpdatedAt:         svc.UpdatedAt,
	}
}

func fromServiceModel(m *serviceModel) *service.Service {
	return &service.Service{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                id.ServiceID(m.ID),
		Provider:          types.Address(m.Provider),
		Name:              m.Name,
		Description:       m.Description,
		Token:             m.Token,
		AmountPerCycle:    m.AmountPerCycle,
		FrequencyInBlocks: uint64(m.FrequencyInBlocks),
		Active:            m.Active,
	}
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	ID                   int64     `bson:"_id"`
	ServiceID            int64     `bson:"service_id"`
	Client               string    `bson:"client"`
	Vendor               string    `bson:"vendor"`
	Token                string    `bson:"token"`
	AmountPerCycle       int64     `bson:"amount_per_cycle"`
	FrequencyInBlocks    int64     `bson:"frequency_in_blocks"`
	RemainingBalance     int64     `bson:"remaining_balance"`
	LastPaymentBlock     int64     `bson:"last_payment_block"`
	NextPaymentBlock     int64     `bson:"next_payment_block"`
	Status               string    `bson:"status"`
	CancelEffectiveBlock int64     `bson:"cancel_effective_block"`
	CancelRequestedBy    string    `bson:"cancel_requested_by"`
	CancelPresent        bool      `bson:"cancel_present"`
	CreatedAt            time.Time `bson:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                   int64(sub.ID),
		ServiceID:            int64(sub.ServiceID),
		Client:               sub.Client.String(),
		Vendor:               sub.Vendor.String(),
		Token:                sub.Token,
		AmountPerCycle:       sub.AmountPerCycle,
		FrequencyInBlocks:    int64(sub.FrequencyInBlocks),
		RemainingBalance:     sub.RemainingBalance,
		LastPaymentBlock:     int64(sub.LastPaymentBlock),
		NextPaymentBlock:     int64(sub.NextPaymentBlock),
		Status:               string(sub.Status),
		CancelEffectiveBlock: int64(sub.CancelEffectiveBlock),
		CancelRequestedBy:    sub.CancelRequest.RequestedBy.String(),
		CancelPresent:        sub.CancelRequest.Present,
		CreatedAt:            sub.CreatedAt,
		UpdatedAt:            sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) *subscription.Subscription {
	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   id.SubscriptionID(m.ID),
		ServiceID:            id.ServiceID(m.ServiceID),
		Client:               types.Address(m.Client),
		Vendor:               types.Address(m.Vendor),
		Token:                m.Token,
		AmountPerCycle:       m.AmountPerCycle,
		FrequencyInBlocks:    uint64(m.FrequencyInBlocks),
		RemainingBalance:     m.RemainingBalance,
		LastPaymentBlock:     uint64(m.LastPaymentBlock),
		NextPaymentBlock:     uint64(m.NextPaymentBlock),
		Status:               subscription.Status(m.Status),
		CancelEffectiveBlock: uint64(m.CancelEffectiveBlock),
		CancelRequest: subscription.CancelRequest{
			RequestedBy: types.Address(m.CancelRequestedBy),
			Present:     m.CancelPresent,
		},
	}
}

// ==================== Stream models ====================

type streamModel struct {
	ID            int64     `bson:"_id"`
	Sender        string    `bson:"sender"`
	Recipient     string    `bson:"recipient"`
	Token         string    `bson:"token"`
	TotalDeposit  int64     `bson:"total_deposit"`
	ClaimedAmount int64     `bson:"claimed_amount"`
	StartBlock    int64     `bson:"start_block"`
	EndBlock      int64     `bson:"end_block"`
	Closed        bool      `bson:"closed"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toStreamModel(st *stream.Stream) *streamModel {
	return &streamModel{
		ID:            int64(st.ID),
		Sender:        st.Sender.String(),
		Recipient:     st.Recipient.String(),
		Token:         st.Token,
		TotalDeposit:  st.TotalDeposit,
		ClaimedAmount: st.ClaimedAmount,
		StartBlock:    int64(st.StartBlock),
		EndBlock:      int64(st.EndBlock),
		Closed:        st.Closed,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,
	}
}

func fromStreamModel(m *streamModel) *stream.Stream {
	return &stream.Stream{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            id.StreamID(m.ID),
		Sender:        types.Address(m.Sender),
		Recipient:     types.Address(m.Recipient),
		Token:         m.Token,
		TotalDeposit:  m.TotalDeposit,
		ClaimedAmount: m.ClaimedAmount,
		StartBlock:    uint64(m.StartBlock),
		EndBlock:      uint64(m.EndBlock),
		Closed:        m.Closed,
	}
}

// ==================== Payment models ====================

type paymentModel struct {
	ID             string    `bson:"_id"`
	SubscriptionID int64     `bson:"subscription_id"`
	StreamID       int64     `bson:"stream_id"`
	Kind           string    `bson:"kind"`
	From           string    `bson:"from_address"`
	To             string    `bson:"to_address"`
	Token          string    `bson:"token"`
	Amount         int64     `bson:"amount"`
	Block          int64     `bson:"block"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toPaymentModel(r *payment.Record) *paymentModel {
	return &paymentModel{
		ID:             r.ID.String(),
		SubscriptionID: int64(r.SubscriptionID),
		StreamID:       int64(r.StreamID),
		Kind:           string(r.Kind),
		From:           r.From.String(),
		To:             r.To.String(),
		Token:          r.Coin.Token,
		Amount:         r.Coin.Amount,
		Block:          int64(r.Block),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Record, error) {
	pid, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: parse payment id %q: %w", m.ID, err)
	}
	return &payment.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             pid,
		SubscriptionID: id.SubscriptionID(m.SubscriptionID),
		StreamID:       id.StreamID(m.StreamID),
		Kind:           payment.Kind(m.Kind),
		From:           types.Address(m.From),
		To:             types.Address(m.To),
		Coin:           types.NewCoin(m.Token, m.Amount),
		Block:          uint64(m.Block),
	}, nil
}
