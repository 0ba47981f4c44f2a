package escrow_test

import (
	"context"
	"log/slog"
	"testing"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/types"
)

// TestDocumentationExamples verifies that the examples in the documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		b := bank.NewMemory()
		e := escrow.New(memory.New(), b,
			escrow.WithLogger(slog.Default()),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		providerAddr := types.Address("erd1docs-provider")
		clientAddr := types.Address("erd1docs-client")

		if err := e.RegisterProvider(ctx, types.NewCall(providerAddr, 1)); err != nil {
			t.Fatal(err)
		}
		if err := e.RegisterUser(ctx, types.NewCall(clientAddr, 1)); err != nil {
			t.Fatal(err)
		}

		svc, err := e.CreateService(ctx, types.NewCall(providerAddr, 1), escrow.CreateServiceParams{
			Name:              "docs-feed",
			AmountPerCycle:    10,
			FrequencyInBlocks: 30,
		})
		if err != nil {
			t.Fatal(err)
		}
		if svc.Token != escrow.NativeToken {
			t.Fatalf("token defaulted to %q, want %q", svc.Token, escrow.NativeToken)
		}

		b.Fund(escrow.Native(60))
		sub, err := e.Subscribe(ctx, types.NewCall(clientAddr, 10), svc.ID, escrow.Native(60))
		if err != nil {
			t.Fatal(err)
		}

		// Anyone may advance a due cycle.
		if err := e.TriggerPayment(ctx, types.NewCall(types.Address("erd1docs-anyone"), 40), sub.ID); err != nil {
			t.Fatal(err)
		}
	})
}
