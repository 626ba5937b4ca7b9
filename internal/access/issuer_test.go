package access

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/testutil"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNewTokenFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken failed: %v", err)
		}
		if !hexToken.MatchString(tok) {
			t.Fatalf("token %q is not 64 hex characters", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestIssueCreatesToken(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db, WithClock(fx.clock()))

	at, created, err := iss.Issue(context.Background(), fx.form.ID, g.ID, nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !created {
		t.Error("expected a new token to be created")
	}
	if !hexToken.MatchString(at.Token) {
		t.Errorf("unexpected token format %q", at.Token)
	}
	if at.ExpiresAt != nil {
		t.Errorf("expected no expiry, got %v", at.ExpiresAt)
	}
	if at.IsSubmitted {
		t.Error("new token must be open")
	}
}

func TestIssueIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db)

	first, _, err := iss.Issue(context.Background(), fx.form.ID, g.ID, testutil.Ptr(3))
	if err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}
	second, created, err := iss.Issue(context.Background(), fx.form.ID, g.ID, testutil.Ptr(10))
	if err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}
	if created {
		t.Error("second Issue must not create a token")
	}
	if second.ID != first.ID || second.Token != first.Token {
		t.Errorf("expected the same token, got %s/%s", first.ID, second.ID)
	}
	if !second.ExpiresAt.Equal(*first.ExpiresAt) {
		t.Error("existing token must be returned unchanged")
	}
}

func TestIssueAfterSubmission(t *testing.T) {
	fx := newFixture(t)
	when := fx.now.Add(-time.Hour)
	testutil.MarkSubmitted(t, fx.db, fx.token, when)

	_, _, err := NewIssuer(fx.db).Issue(context.Background(), fx.form.ID, fx.guest.ID, nil)
	d := assertDenied(t, err, ErrAlreadySubmitted)
	if d.SubmittedAt == nil || !d.SubmittedAt.Equal(when) {
		t.Errorf("expected submittedAt %v, got %v", when, d.SubmittedAt)
	}
}

func TestIssueExpiry(t *testing.T) {
	fx := newFixture(t)
	iss := NewIssuer(fx.db, WithClock(fx.clock()))

	tests := []struct {
		name string
		days *int
		want *time.Time
	}{
		{"absent", nil, nil},
		{"zero", testutil.Ptr(0), nil},
		{"negative", testutil.Ptr(-2), nil},
		{"seven days", testutil.Ptr(7), testutil.Ptr(fx.now.Add(7 * 24 * time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testutil.SeedGuest(t, fx.db, testutil.AdminID, tt.name, tt.name+"@example.com")
			at, _, err := iss.Issue(context.Background(), fx.form.ID, g.ID, tt.days)
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}
			switch {
			case tt.want == nil && at.ExpiresAt != nil:
				t.Errorf("expected no expiry, got %v", at.ExpiresAt)
			case tt.want != nil && (at.ExpiresAt == nil || !at.ExpiresAt.Equal(*tt.want)):
				t.Errorf("expected expiry %v, got %v", tt.want, at.ExpiresAt)
			}
		})
	}
}

func TestIssueFarFutureExpiry(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db, WithClock(fx.clock()))

	at, created, err := iss.Issue(context.Background(), fx.form.ID, g.ID, testutil.Ptr(200000))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !created {
		t.Fatal("expected a new token")
	}
	want := fx.now.AddDate(0, 0, 200000)
	if at.ExpiresAt == nil || !at.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, at.ExpiresAt)
	}
	if !at.ExpiresAt.After(fx.now) {
		t.Fatalf("expiry %v is not in the future", at.ExpiresAt)
	}

	if _, err := fx.validator().Validate(context.Background(), at.Token); err != nil {
		t.Errorf("freshly issued token should validate, got %v", err)
	}
}

func TestIssueRejectsOversizedExpiry(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")

	_, _, err := NewIssuer(fx.db).Issue(context.Background(), fx.form.ID, g.ID, testutil.Ptr(MaxExpiresInDays+1))
	if !errors.Is(err, ErrExpiryTooLong) {
		t.Fatalf("expected ErrExpiryTooLong, got %v", err)
	}
	var n int64
	fx.db.Model(&db.AccessToken{}).Where("guest_id = ?", g.ID).Count(&n)
	if n != 0 {
		t.Errorf("expected no token to be stored, got %d", n)
	}

	if _, _, err := NewIssuer(fx.db).Issue(context.Background(), fx.form.ID, g.ID, testutil.Ptr(MaxExpiresInDays)); err != nil {
		t.Errorf("expected the maximum lifetime to be accepted, got %v", err)
	}
}

func TestIssueRetriesTokenCollision(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db)

	values := []string{"tok-open", "tok-fresh"}
	calls := 0
	iss.newToken = func() (string, error) {
		v := values[calls]
		calls++
		return v, nil
	}

	at, created, err := iss.Issue(context.Background(), fx.form.ID, g.ID, nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !created || at.Token != "tok-fresh" {
		t.Errorf("expected retry with a fresh token, got %q (created=%v)", at.Token, created)
	}
	if calls != 2 {
		t.Errorf("expected 2 token draws, got %d", calls)
	}
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db)
	iss.newToken = func() (string, error) { return "tok-open", nil }

	if _, _, err := iss.Issue(context.Background(), fx.form.ID, g.ID, nil); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestIssueConcurrentConverges(t *testing.T) {
	fx := newFixture(t)
	g := testutil.SeedGuest(t, fx.db, testutil.AdminID, "Bob", "bob@example.com")
	iss := NewIssuer(fx.db)

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	createdCount := 0
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			at, created, err := iss.Issue(context.Background(), fx.form.ID, g.ID, nil)
			if err != nil {
				t.Errorf("Issue %d failed: %v", i, err)
				return
			}
			ids[i] = at.ID
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("expected exactly one creation, got %d", createdCount)
	}
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("issuers diverged: %s vs %s", ids[0], ids[i])
		}
	}
	var count int64
	fx.db.Model(&db.AccessToken{}).Where("form_id = ? AND guest_id = ?", fx.form.ID, g.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 stored token, got %d", count)
	}
}
