package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func seedCase(t *testing.T, store *Store) int {
	t.Helper()
	var id int
	err := store.Pool.QueryRow(context.Background(), `
		INSERT INTO aged_cases
			(site_id, site_name, customer_name, customer_phone, customer_email,
			 case_type, escalation_tier, status,
			 daily_savings_loss, total_savings_loss, expected_daily_generation,
			 created_at, updated_at)
		VALUES (1001, 'Test Site', 'Test Customer', '+447700900123', 'test@example.com',
			$1, 1, $2, 1.50, 45.00, 12.0, NOW(), NOW())
		RETURNING id
	`, models.CaseTypeNoCommunication, models.StatusActive).Scan(&id)
	if err != nil {
		t.Fatalf("seed case: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		store.Pool.Exec(ctx, `DELETE FROM aged_case_history WHERE case_id = $1`, id)
		store.Pool.Exec(ctx, `DELETE FROM aged_case_communications WHERE case_id = $1`, id)
		store.Pool.Exec(ctx, `DELETE FROM aged_cases WHERE id = $1`, id)
	})
	return id
}

func TestResolveSetsResolvedAtAndWritesHistory(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	id := seedCase(t, store)
	user := "ops@lux"

	if err := store.ResolveCase(ctx, id, "Inverter replaced, generation restored", &user); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	c, err := store.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if c.Status != models.StatusResolved {
		t.Fatalf("expected resolved, got %q", c.Status)
	}
	if c.ResolvedAt == nil {
		t.Fatalf("resolved case must carry resolved_at")
	}

	history, err := store.ListHistory(ctx, id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Action != models.HistoryCaseResolved {
		t.Fatalf("expected %q, got %q", models.HistoryCaseResolved, history[0].Action)
	}
	if history[0].Notes != "Inverter replaced, generation restored" {
		t.Fatalf("resolution notes not recorded: %q", history[0].Notes)
	}
	if history[0].User == nil || *history[0].User != user {
		t.Fatalf("resolution user not recorded: %v", history[0].User)
	}

	// The transition is terminal; a second resolve must fail.
	if err := store.ResolveCase(ctx, id, "again", &user); err != ErrTerminalCase {
		t.Fatalf("expected ErrTerminalCase, got %v", err)
	}
}

func TestAbandonLeavesResolvedAtNull(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	id := seedCase(t, store)

	if err := store.AbandonCase(ctx, id, "No contact after tier 4", nil); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	c, err := store.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if c.Status != models.StatusAbandoned {
		t.Fatalf("expected abandoned, got %q", c.Status)
	}
	if c.ResolvedAt != nil {
		t.Fatalf("abandoned case must not carry resolved_at, got %v", c.ResolvedAt)
	}

	history, err := store.ListHistory(ctx, id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].Action != models.HistoryCaseAbandoned {
		t.Fatalf("expected one %q entry, got %+v", models.HistoryCaseAbandoned, history)
	}
}

func TestDeliveryReceiptDoesNotResetEscalationClock(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	id := seedCase(t, store)

	trackingID := uuid.NewString()
	err := store.WithTx(ctx, func(tx pgx.Tx) error {
		_, _, err := store.InsertCommunication(ctx, tx, models.AgedCaseCommunication{
			CaseID:         id,
			Channel:        models.ChannelSMS,
			MessageContent: "hello",
			TrackingID:     trackingID,
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert communication: %v", err)
	}

	for _, action := range []string{"delivered", "opened", "clicked"} {
		if err := store.ApplyEngagement(ctx, trackingID, action); err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		c, err := store.GetCase(ctx, id)
		if err != nil {
			t.Fatalf("get case: %v", err)
		}
		if c.LastEngagement != nil {
			t.Fatalf("%s must not set last_engagement", action)
		}
		if c.CustomerResponded {
			t.Fatalf("%s must not mark the customer as responded", action)
		}
	}

	comms, err := store.ListCommunications(ctx, id)
	if err != nil {
		t.Fatalf("list communications: %v", err)
	}
	if len(comms) != 1 {
		t.Fatalf("expected 1 communication, got %d", len(comms))
	}
	if !comms[0].Delivered || !comms[0].Opened || !comms[0].Clicked {
		t.Fatalf("engagement flags not applied: %+v", comms[0])
	}
	if comms[0].Responded {
		t.Fatalf("responded flag set without a response")
	}

	if err := store.ApplyEngagement(ctx, trackingID, "responded"); err != nil {
		t.Fatalf("responded: %v", err)
	}
	c, err := store.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if c.LastEngagement == nil {
		t.Fatalf("a response must set last_engagement")
	}
	if !c.CustomerResponded {
		t.Fatalf("a response must mark the customer as responded")
	}
}
