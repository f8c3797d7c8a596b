package remind

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"planreminder/internal/model"
)

func planClient(id, expiration string) model.Client {
	return model.Client{
		ID:             id,
		Name:           "Client " + id,
		Phone:          "+5511987654321",
		PlanType:       "IPTV",
		Value:          49.90,
		PlanExpiration: expiration,
		PaymentStatus:  model.PaymentPending,
	}
}

func groupIDs(clients []model.Client) []string {
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestGroupByReminderDate_TwoCandidatesPerClient(t *testing.T) {
	t.Parallel()

	clients := []model.Client{planClient("c1", "2025-01-10")}
	grouped := GroupByReminderDate(clients, time.UTC, zap.NewNop())

	if len(grouped) != 2 {
		t.Fatalf("expected 2 date groups, got %d", len(grouped))
	}

	g, ok := grouped["2025-01-07"]
	if !ok {
		t.Fatalf("expected a 3days group on 2025-01-07, got %v", grouped)
	}
	if diff := cmp.Diff([]string{"c1"}, groupIDs(g.ThreeDays)); diff != "" {
		t.Fatalf("3days group mismatch (-want +got):\n%s", diff)
	}
	if len(g.Payment) != 0 {
		t.Fatalf("expected no payment clients on 2025-01-07")
	}

	g, ok = grouped["2025-01-10"]
	if !ok {
		t.Fatalf("expected a payment group on 2025-01-10, got %v", grouped)
	}
	if diff := cmp.Diff([]string{"c1"}, groupIDs(g.Payment)); diff != "" {
		t.Fatalf("payment group mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByReminderDate_SharedDatesMerge(t *testing.T) {
	t.Parallel()

	// c1 expires on the 10th, c2 on the 13th: c2's 3days reminder lands on
	// c1's payment date.
	clients := []model.Client{
		planClient("c1", "2025-01-10"),
		planClient("c2", "2025-01-13"),
	}
	grouped := GroupByReminderDate(clients, time.UTC, zap.NewNop())

	g, ok := grouped["2025-01-10"]
	if !ok {
		t.Fatalf("expected group on 2025-01-10")
	}
	if diff := cmp.Diff([]string{"c2"}, groupIDs(g.ThreeDays)); diff != "" {
		t.Fatalf("3days group mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c1"}, groupIDs(g.Payment)); diff != "" {
		t.Fatalf("payment group mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByReminderDate_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	clients := []model.Client{
		planClient("b", "2025-03-01"),
		planClient("a", "2025-03-01"),
		planClient("c", "2025-03-01"),
	}
	grouped := GroupByReminderDate(clients, time.UTC, zap.NewNop())

	g := grouped["2025-03-01"]
	if g == nil {
		t.Fatalf("expected payment group on 2025-03-01")
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, groupIDs(g.Payment)); diff != "" {
		t.Fatalf("payment order mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByReminderDate_SkipsUnparseableClient(t *testing.T) {
	t.Parallel()

	clients := []model.Client{
		planClient("bad", "01/10/2025"),
		planClient("good", "2025-01-10"),
	}
	grouped := GroupByReminderDate(clients, time.UTC, zap.NewNop())

	if len(grouped) != 2 {
		t.Fatalf("expected only the good client's 2 groups, got %d", len(grouped))
	}
	for key, g := range grouped {
		for _, c := range append(g.ThreeDays, g.Payment...) {
			if c.ID == "bad" {
				t.Fatalf("bad client leaked into group %s", key)
			}
		}
	}
}

func TestGroupByReminderDate_PaidClientsStillPlanned(t *testing.T) {
	t.Parallel()

	paid := planClient("c1", "2025-01-10")
	paid.PaymentStatus = model.PaymentPaid

	grouped := GroupByReminderDate([]model.Client{paid}, time.UTC, zap.NewNop())
	if len(grouped) != 2 {
		t.Fatalf("expected paid client to be planned anyway, got %d groups", len(grouped))
	}
}
