package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	migrations "github.com/healthops/credwatch/db"
	dbpkg "github.com/healthops/credwatch/internal/db"
	"github.com/healthops/credwatch/internal/engine"
	sqlite "github.com/healthops/credwatch/internal/repository/sqlite"
	"github.com/healthops/credwatch/pkg/apperr"
	"github.com/healthops/credwatch/pkg/models"
	"github.com/healthops/credwatch/pkg/npi"
	"github.com/healthops/credwatch/pkg/repository/mock"
)

// fixedNow pins the engine's local calendar day so date arithmetic in tests
// is deterministic.
var fixedNow = time.Date(2026, time.September, 1, 15, 4, 5, 0, time.Local)

type fakeRegistry struct {
	doc   *npi.ProviderDocument
	err   error
	calls int
}

func (f *fakeRegistry) GetProviderByNPI(ctx context.Context, npiID string) (*npi.ProviderDocument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func setupEngine(t *testing.T, reg engine.RegistryClient) (*engine.Engine, *sqlite.SQLiteRepo, func()) {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "file::memory:?cache=shared", nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	if err := dbpkg.Migrate(ctx, d, migrations.Migrations); err != nil {
		d.Close()
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil)
	eng := engine.New(repo, repo, repo, reg, engine.WithClock(func() time.Time { return fixedNow }))
	return eng, repo, func() { d.Close() }
}

func date(daysFromToday int) string {
	return fixedNow.AddDate(0, 0, daysFromToday).Format("2006-01-02")
}

func strptr(s string) *string { return &s }

func createProvider(t *testing.T, repo *sqlite.SQLiteRepo, p models.Provider) int64 {
	t.Helper()
	id, err := repo.CreateProvider(context.Background(), &p)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return id
}

func TestSyncProviderIdentity_CreatesThenUpdates(t *testing.T) {
	reg := &fakeRegistry{doc: &npi.ProviderDocument{
		NPI:             "1234567890",
		FirstName:       "Jane",
		LastName:        "Kim",
		TaxonomyDesc:    "Cardiology",
		PracticeAddress: json.RawMessage(`{"city":"Austin","state":"TX"}`),
	}}
	eng, repo, cleanup := setupEngine(t, reg)
	defer cleanup()
	ctx := context.Background()

	first, err := eng.SyncProviderIdentity(ctx, "1234567890")
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.FullName != "Jane Kim" {
		t.Fatalf("unexpected name: %q", first.FullName)
	}
	if first.Location == nil || *first.Location != "Austin, TX" {
		t.Fatalf("unexpected location: %v", first.Location)
	}
	if first.PrimarySpecialty == nil || *first.PrimarySpecialty != "Cardiology" {
		t.Fatalf("unexpected specialty: %v", first.PrimarySpecialty)
	}
	if !first.IsActive {
		t.Fatalf("synced provider should be active")
	}

	reg.doc.FirstName = "Jane A."
	reg.doc.TaxonomyDesc = "Interventional Cardiology"
	second, err := eng.SyncProviderIdentity(ctx, "1234567890")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second sync created a new row: %d vs %d", second.ID, first.ID)
	}
	if second.FullName != "Jane A. Kim" {
		t.Fatalf("name not updated: %q", second.FullName)
	}

	// still exactly one row for the npi
	got, err := repo.GetProviderByNPI(ctx, "1234567890")
	if err != nil || got == nil || got.ID != first.ID {
		t.Fatalf("lookup after sync: %v %#v", err, got)
	}
}

func TestSyncProviderIdentity_NameFallbacks(t *testing.T) {
	cases := []struct {
		name string
		doc  npi.ProviderDocument
		want string
	}{
		{"org fallback", npi.ProviderDocument{NPI: "1", OrganizationName: "Mercy Health"}, "Mercy Health"},
		{"unknown fallback", npi.ProviderDocument{NPI: "2"}, "Unknown"},
		{"first only", npi.ProviderDocument{NPI: "3", FirstName: "Jane"}, "Jane"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &fakeRegistry{doc: &tc.doc}
			eng, _, cleanup := setupEngine(t, reg)
			defer cleanup()

			p, err := eng.SyncProviderIdentity(context.Background(), tc.doc.NPI)
			if err != nil {
				t.Fatalf("sync: %v", err)
			}
			if p.FullName != tc.want {
				t.Fatalf("expected name %q, got %q", tc.want, p.FullName)
			}
			if p.PrimarySpecialty == nil || *p.PrimarySpecialty != "Unknown" {
				t.Fatalf("specialty should default to Unknown: %v", p.PrimarySpecialty)
			}
		})
	}
}

func TestSyncProviderIdentity_StringAddress(t *testing.T) {
	reg := &fakeRegistry{doc: &npi.ProviderDocument{
		NPI:             "1234567890",
		FirstName:       "Jane",
		LastName:        "Kim",
		PracticeAddress: json.RawMessage(`"42 Main St, Springfield"`),
	}}
	eng, _, cleanup := setupEngine(t, reg)
	defer cleanup()

	p, err := eng.SyncProviderIdentity(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if p.Location == nil || *p.Location != "42 Main St, Springfield" {
		t.Fatalf("string address should pass through: %v", p.Location)
	}
}

func TestSyncProviderIdentity_Errors(t *testing.T) {
	t.Run("empty npi", func(t *testing.T) {
		eng, _, cleanup := setupEngine(t, &fakeRegistry{})
		defer cleanup()
		_, err := eng.SyncProviderIdentity(context.Background(), "  ")
		if !apperr.HasKind(err, apperr.KindInvalidArgument) {
			t.Fatalf("expected invalid_argument, got %v", err)
		}
	})

	t.Run("registry miss", func(t *testing.T) {
		eng, _, cleanup := setupEngine(t, &fakeRegistry{err: npi.ErrNotFound})
		defer cleanup()
		_, err := eng.SyncProviderIdentity(context.Background(), "9999999999")
		if !apperr.HasKind(err, apperr.KindNotFound) {
			t.Fatalf("expected not_found, got %v", err)
		}
	})

	t.Run("registry down", func(t *testing.T) {
		eng, _, cleanup := setupEngine(t, &fakeRegistry{err: errors.New("connection refused")})
		defer cleanup()
		_, err := eng.SyncProviderIdentity(context.Background(), "9999999999")
		if !apperr.HasKind(err, apperr.KindUnavailable) {
			t.Fatalf("expected unavailable, got %v", err)
		}
	})
}

func TestUpsertCredential_IdempotentByKey(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	pid := createProvider(t, repo, models.Provider{FullName: "Jane Kim", IsActive: true})

	first, err := eng.UpsertCredential(ctx, pid, "license", "State", "L1", date(100))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Status != models.CredentialActive {
		t.Fatalf("expected active, got %s", first.Status)
	}

	second, err := eng.UpsertCredential(ctx, pid, "license", "State", "L1", date(200))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same identity key must update in place: %d vs %d", second.ID, first.ID)
	}
	if second.ExpiryDate == nil || *second.ExpiryDate != date(200) {
		t.Fatalf("expiry not overwritten: %v", second.ExpiryDate)
	}

	rows, err := repo.ListCredentialsByProvider(ctx, pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one stored row, got %d", len(rows))
	}
}

func TestUpsertCredential_StatusBoundaries(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	pid := createProvider(t, repo, models.Provider{FullName: "Jane Kim", IsActive: true})

	cases := []struct {
		name   string
		expiry string
		want   string
	}{
		{"tomorrow is active", date(1), models.CredentialActive},
		{"today is expired", date(0), models.CredentialExpired},
		{"yesterday is expired", date(-1), models.CredentialExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := eng.UpsertCredential(ctx, pid, "license", "State", tc.name, tc.expiry)
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}
			if c.Status != tc.want {
				t.Fatalf("expiry %s: expected %s, got %s", tc.expiry, tc.want, c.Status)
			}
		})
	}
}

func TestUpsertCredential_InvalidDatePerformsNoWrite(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	pid := createProvider(t, repo, models.Provider{FullName: "Jane Kim", IsActive: true})

	_, err := eng.UpsertCredential(ctx, pid, "license", "State", "L1", "not-a-date")
	if !apperr.HasKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
	if err.Error() != "Invalid date format. Use YYYY-MM-DD" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	rows, err := repo.ListCredentialsByProvider(ctx, pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("invalid date must not write, got %d rows", len(rows))
	}
}

func TestUpsertCredential_UnknownProvider(t *testing.T) {
	eng, _, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()

	_, err := eng.UpsertCredential(context.Background(), 9999, "license", "State", "L1", date(10))
	if !apperr.HasKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestListExpiring_WindowScenario(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	pid := createProvider(t, repo, models.Provider{FullName: "Jane Kim", IsActive: true})

	if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "L1", date(10)); err != nil {
		t.Fatalf("upsert L1: %v", err)
	}
	if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "L2", date(100)); err != nil {
		t.Fatalf("upsert L2: %v", err)
	}

	items, err := eng.ListExpiring(ctx, 30, "", "")
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(items))
	}
	got := items[0]
	if got.Credential.Number != "L1" {
		t.Fatalf("expected L1, got %s", got.Credential.Number)
	}
	if got.DaysToExpiry != 10 {
		t.Fatalf("expected 10 days to expiry, got %d", got.DaysToExpiry)
	}
	if got.RiskScore != 3 {
		t.Fatalf("expected risk 3, got %d", got.RiskScore)
	}
}

func TestListExpiring_NeverReturnsOutOfWindowOrExpired(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	pid := createProvider(t, repo, models.Provider{FullName: "Jane Kim", IsActive: true})

	// expired status at write time: expiry today
	if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "TODAY", date(0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// in window
	if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "NEAR", date(3)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// beyond window
	if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "FAR", date(90)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	const window = 45
	items, err := eng.ListExpiring(ctx, window, "", "")
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	for _, it := range items {
		if it.DaysToExpiry < 0 || it.DaysToExpiry > window {
			t.Fatalf("days out of window: %d", it.DaysToExpiry)
		}
		if it.Credential.Status != models.CredentialActive {
			t.Fatalf("expired credential leaked into report: %#v", it.Credential)
		}
	}
	if len(items) != 1 || items[0].Credential.Number != "NEAR" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestListExpiring_NegativeWindow(t *testing.T) {
	eng, _, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()

	_, err := eng.ListExpiring(context.Background(), -1, "", "")
	if !apperr.HasKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestRiskScoreBoundaries(t *testing.T) {
	cases := map[int]int{
		0:   3,
		29:  3,
		30:  2,
		59:  2,
		60:  1,
		120: 1,
	}
	for days, want := range cases {
		if got := engine.RiskScore(days); got != want {
			t.Fatalf("RiskScore(%d) = %d, want %d", days, got, want)
		}
	}
}

func TestStoreFailuresMapToInternal(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{doc: &npi.ProviderDocument{NPI: "1234567890", FirstName: "Jane", LastName: "Kim"}}

	t.Run("provider upsert fails", func(t *testing.T) {
		m := mock.NewMocks()
		m.Providers.UpsertErr = errors.New("disk full")
		eng := engine.New(m.Providers, m.Credentials, m.Alerts, reg)

		_, err := eng.SyncProviderIdentity(ctx, "1234567890")
		if !apperr.HasKind(err, apperr.KindInternal) {
			t.Fatalf("expected internal, got %v", err)
		}
	})

	t.Run("credential upsert fails", func(t *testing.T) {
		m := mock.NewMocks()
		m.Providers.Stored = &models.Provider{ID: 1, FullName: "Jane Kim", IsActive: true}
		m.Credentials.UpsertErr = errors.New("disk full")
		eng := engine.New(m.Providers, m.Credentials, m.Alerts, reg)

		_, err := eng.UpsertCredential(ctx, 1, "license", "State", "L1", date(10))
		if !apperr.HasKind(err, apperr.KindInternal) {
			t.Fatalf("expected internal, got %v", err)
		}
	})

	t.Run("expiring scan fails", func(t *testing.T) {
		m := mock.NewMocks()
		m.Credentials.ListErr = errors.New("disk full")
		eng := engine.New(m.Providers, m.Credentials, m.Alerts, reg)

		_, err := eng.ListExpiring(ctx, 30, "", "")
		if !apperr.HasKind(err, apperr.KindInternal) {
			t.Fatalf("expected internal, got %v", err)
		}
	})
}

func TestGetProviderSnapshot(t *testing.T) {
	eng, repo, cleanup := setupEngine(t, &fakeRegistry{})
	defer cleanup()
	ctx := context.Background()

	t.Run("missing identifiers", func(t *testing.T) {
		_, err := eng.GetProviderSnapshot(ctx, 0, "")
		if !apperr.HasKind(err, apperr.KindInvalidArgument) {
			t.Fatalf("expected invalid_argument, got %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := eng.GetProviderSnapshot(ctx, 424242, "")
		if !apperr.HasKind(err, apperr.KindNotFound) {
			t.Fatalf("expected not_found, got %v", err)
		}
	})

	pid := createProvider(t, repo, models.Provider{NPI: strptr("1234567890"), FullName: "Jane Kim", IsActive: true})

	t.Run("empty credentials and alerts", func(t *testing.T) {
		snap, err := eng.GetProviderSnapshot(ctx, pid, "")
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Credentials == nil || len(snap.Credentials) != 0 {
			t.Fatalf("expected empty credentials list, got %#v", snap.Credentials)
		}
		if snap.Alerts == nil || len(snap.Alerts) != 0 {
			t.Fatalf("expected empty alerts list, got %#v", snap.Alerts)
		}
	})

	t.Run("resolve by npi", func(t *testing.T) {
		if _, err := eng.UpsertCredential(ctx, pid, "license", "State", "L1", date(10)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if _, err := repo.CreateAlert(ctx, &models.Alert{ProviderID: pid, Message: "license L1 expiring"}); err != nil {
			t.Fatalf("create alert: %v", err)
		}

		snap, err := eng.GetProviderSnapshot(ctx, 0, "1234567890")
		if err != nil {
			t.Fatalf("snapshot by npi: %v", err)
		}
		if snap.Provider.ID != pid {
			t.Fatalf("resolved wrong provider: %#v", snap.Provider)
		}
		if len(snap.Credentials) != 1 || len(snap.Alerts) != 1 {
			t.Fatalf("expected 1 credential and 1 alert, got %d/%d", len(snap.Credentials), len(snap.Alerts))
		}
	})
}
