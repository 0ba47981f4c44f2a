package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/service"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

func TestRoleRegistry(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	addr := types.Address("erd1user")

	r, err := s.GetRole(ctx, addr)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if r != role.None {
		t.Fatalf("unregistered address has role %q, want none", r)
	}

	if err := s.SetRole(ctx, addr, role.User); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	r, _ = s.GetRole(ctx, addr)
	if r != role.User {
		t.Fatalf("role = %q, want user", r)
	}

	// Roles are write-once, even for the same role again.
	err = s.SetRole(ctx, addr, role.Provider)
	if !errors.Is(err, escrow.ErrAlreadyRegistered) {
		t.Fatalf("second SetRole err = %v, want ErrAlreadyRegistered", err)
	}
	err = s.SetRole(ctx, addr, role.User)
	if !errors.Is(err, escrow.ErrAlreadyRegistered) {
		t.Fatalf("repeat SetRole err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestServiceIDsAreDense(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc := &service.Service{Provider: "erd1prov", Name: "svc", Token: "USDC", Active: true}
		if err := s.CreateService(ctx, svc); err != nil {
			t.Fatalf("CreateService: %v", err)
		}
		if got, want := uint64(svc.ID), uint64(i+1); got != want {
			t.Fatalf("service id = %d, want %d", got, want)
		}
	}
}

func TestListPagination(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc := &service.Service{Provider: "erd1prov", Name: "svc", Token: "USDC", Active: true}
		if err := s.CreateService(ctx, svc); err != nil {
			t.Fatalf("CreateService: %v", err)
		}
	}

	tests := []struct {
		name   string
		opts   service.ListOpts
		want   int
		wantID uint64
	}{
		{"limit", service.ListOpts{Limit: 2}, 2, 1},
		{"offset", service.ListOpts{Offset: 1}, 2, 2},
		{"offset past end", service.ListOpts{Offset: 10}, 0, 0},
		{"negative offset clamps to start", service.ListOpts{Offset: -5, Limit: 1}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListServices(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListServices: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if tt.want > 0 && uint64(got[0].ID) != tt.wantID {
				t.Errorf("first id = %d, want %d", got[0].ID, tt.wantID)
			}
		})
	}
}

func TestSubscriptionIndexes(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	mk := func(client, vendor types.Address, status subscription.Status) *subscription.Subscription {
		sub := &subscription.Subscription{
			ServiceID: 1,
			Client:    client,
			Vendor:    vendor,
			Token:     "USDC",
			Status:    status,
		}
		if err := s.CreateSubscription(ctx, sub); err != nil {
			t.Fatalf("CreateSubscription: %v", err)
		}
		return sub
	}

	mk("erd1alice", "erd1prov", subscription.StatusActive)
	mk("erd1alice", "erd1prov", subscription.StatusCancelledByUser)
	mk("erd1bob", "erd1prov", subscription.StatusActive)

	byClient, err := s.ListSubscriptions(ctx, subscription.ListOpts{Client: "erd1alice"})
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(byClient) != 2 {
		t.Fatalf("client index returned %d subs, want 2 (terminated ones stay listed)", len(byClient))
	}

	active, err := s.ListSubscriptions(ctx, subscription.ListOpts{
		Client: "erd1alice",
		Status: subscription.StatusActive,
	})
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("status filter returned %d subs, want 1", len(active))
	}

	byVendor, err := s.ListSubscriptions(ctx, subscription.ListOpts{Vendor: "erd1prov"})
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(byVendor) != 3 {
		t.Fatalf("vendor index returned %d subs, want 3", len(byVendor))
	}

	byService, err := s.ListSubscriptions(ctx, subscription.ListOpts{Service: 1})
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(byService) != 3 {
		t.Fatalf("service index returned %d subs, want 3", len(byService))
	}
}

func TestPaymentJournalFilters(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	records := []*payment.Record{
		{SubscriptionID: 1, Kind: payment.KindCharge, From: "escrow", To: "erd1prov", Coin: types.NewCoin("USDC", 10)},
		{SubscriptionID: 1, Kind: payment.KindRefund, From: "escrow", To: "erd1alice", Coin: types.NewCoin("USDC", 40)},
		{SubscriptionID: 2, Kind: payment.KindCharge, From: "escrow", To: "erd1prov", Coin: types.NewCoin("USDC", 10)},
	}
	for _, r := range records {
		if err := s.AppendPayment(ctx, r); err != nil {
			t.Fatalf("AppendPayment: %v", err)
		}
	}

	bySub, err := s.ListPayments(ctx, payment.ListOpts{SubscriptionID: 1})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(bySub) != 2 {
		t.Fatalf("subscription filter returned %d records, want 2", len(bySub))
	}

	charges, err := s.ListPayments(ctx, payment.ListOpts{Kind: payment.KindCharge})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(charges) != 2 {
		t.Fatalf("kind filter returned %d records, want 2", len(charges))
	}

	byAddr, err := s.ListPayments(ctx, payment.ListOpts{Address: "erd1alice"})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(byAddr) != 1 {
		t.Fatalf("address filter returned %d records, want 1", len(byAddr))
	}
}
