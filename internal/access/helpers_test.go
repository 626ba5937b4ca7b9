package access

import (
	"testing"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/testutil"
	"gorm.io/gorm"
)

// fixture is a database with one active form, one guest and one open token.
type fixture struct {
	db    *gorm.DB
	form  *db.Form
	guest *db.Guest
	token *db.AccessToken
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := testutil.SetupTestDB(t)
	f := testutil.SeedForm(t, d, testutil.AdminID, true)
	g := testutil.SeedGuest(t, d, testutil.AdminID, "Ada Lovelace", "ada@example.com")
	at := testutil.SeedToken(t, d, f.ID, g.ID, "tok-open", nil)
	return &fixture{db: d, form: f, guest: g, token: at, now: time.Now().UTC()}
}

func (fx *fixture) clock() func() time.Time {
	return func() time.Time { return fx.now }
}

func (fx *fixture) validator() *Validator {
	return NewValidator(fx.db, WithClock(fx.clock()))
}

func (fx *fixture) guard() *Guard {
	return NewGuard(fx.db, fx.validator(), WithClock(fx.clock()))
}

func assertDenied(t *testing.T, err error, want error) *DeniedError {
	t.Helper()
	d, ok := AsDenied(err)
	if !ok {
		t.Fatalf("expected *DeniedError(%v), got %v", want, err)
	}
	if d.Reason != want {
		t.Fatalf("expected reason %v, got %v", want, d.Reason)
	}
	return d
}
