package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/testutil"
)

func TestSubmitStoresResponse(t *testing.T) {
	fx := newFixture(t)

	resp, err := fx.guard().Submit(context.Background(), "tok-open", testutil.ValidAnswers())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !resp.SubmittedAt.Equal(fx.now) {
		t.Errorf("expected submittedAt %v, got %v", fx.now, resp.SubmittedAt)
	}

	var at db.AccessToken
	fx.db.First(&at, "id = ?", fx.token.ID)
	if !at.IsSubmitted {
		t.Error("expected token to be submitted")
	}
	if at.SubmittedAt == nil || !at.SubmittedAt.Equal(fx.now) {
		t.Errorf("expected token submittedAt %v, got %v", fx.now, at.SubmittedAt)
	}

	var stored db.Response
	if err := fx.db.First(&stored, "access_token_id = ?", fx.token.ID).Error; err != nil {
		t.Fatalf("failed to fetch response: %v", err)
	}
	if stored.GuestID != fx.guest.ID || stored.FormID != fx.form.ID {
		t.Errorf("response bound to wrong records: %+v", stored)
	}
	if stored.Answers["plan"] != "A" {
		t.Errorf("expected plan 'A', got %v", stored.Answers["plan"])
	}
}

func TestSubmitDropsUnknownAnswers(t *testing.T) {
	fx := newFixture(t)
	answers := testutil.ValidAnswers()
	answers["nickname"] = "ada"

	resp, err := fx.guard().Submit(context.Background(), "tok-open", answers)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, ok := resp.Answers["nickname"]; ok {
		t.Error("answers for unknown fields must not be stored")
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	fx := newFixture(t)
	g := fx.guard()

	if _, err := g.Submit(context.Background(), "tok-open", testutil.ValidAnswers()); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	_, err := g.Submit(context.Background(), "tok-open", testutil.ValidAnswers())
	d := assertDenied(t, err, ErrAlreadySubmitted)
	if d.SubmittedAt == nil {
		t.Error("expected submittedAt on repeated submission")
	}
	if n := testutil.CountResponses(t, fx.db, fx.token.ID); n != 1 {
		t.Errorf("expected 1 response, got %d", n)
	}
}

func TestSubmitValidationFailureLeavesTokenOpen(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.guard().Submit(context.Background(), "tok-open", map[string]any{"age": "x", "plan": "C"})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}

	var at db.AccessToken
	fx.db.First(&at, "id = ?", fx.token.ID)
	if at.IsSubmitted {
		t.Error("validation failure must not consume the token")
	}
	if n := testutil.CountResponses(t, fx.db, fx.token.ID); n != 0 {
		t.Errorf("expected no responses, got %d", n)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	fx := newFixture(t)
	g := fx.guard()

	_, err := g.Submit(context.Background(), "missing", testutil.ValidAnswers())
	assertDenied(t, err, ErrTokenNotFound)

	fx.db.Model(&db.Form{}).Where("id = ?", fx.form.ID).Update("is_active", false)
	_, err = g.Submit(context.Background(), "tok-open", testutil.ValidAnswers())
	assertDenied(t, err, ErrFormInactive)
}

// A submission holding a grant validated before another request consumed
// the token must lose at the conditional write.
func TestSubmitStaleGrantLosesRace(t *testing.T) {
	fx := newFixture(t)
	g := fx.guard()

	stale, err := fx.validator().Validate(context.Background(), "tok-open")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if _, err := g.Submit(context.Background(), "tok-open", testutil.ValidAnswers()); err != nil {
		t.Fatalf("winning Submit failed: %v", err)
	}

	_, err = g.submitGrant(context.Background(), stale, testutil.ValidAnswers())
	assertDenied(t, err, ErrAlreadySubmitted)
	if n := testutil.CountResponses(t, fx.db, fx.token.ID); n != 1 {
		t.Errorf("expected exactly 1 response, got %d", n)
	}
}

func TestSubmitStaleGrantFormDeactivated(t *testing.T) {
	fx := newFixture(t)
	g := fx.guard()

	stale, err := fx.validator().Validate(context.Background(), "tok-open")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	fx.db.Model(&db.Form{}).Where("id = ?", fx.form.ID).Update("is_active", false)

	_, err = g.submitGrant(context.Background(), stale, testutil.ValidAnswers())
	assertDenied(t, err, ErrFormInactive)
	if n := testutil.CountResponses(t, fx.db, fx.token.ID); n != 0 {
		t.Errorf("expected no responses, got %d", n)
	}
}

func TestSubmitStaleGrantExpired(t *testing.T) {
	fx := newFixture(t)
	expires := fx.now.Add(time.Minute)
	fx.db.Model(&db.AccessToken{}).Where("id = ?", fx.token.ID).Update("expires_at", expires)
	g := fx.guard()

	stale, err := fx.validator().Validate(context.Background(), "tok-open")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	fx.now = fx.now.Add(2 * time.Minute)

	_, err = g.submitGrant(context.Background(), stale, testutil.ValidAnswers())
	assertDenied(t, err, ErrTokenExpired)
}

func TestConcurrentSubmitExactlyOnce(t *testing.T) {
	fx := newFixture(t)
	g := fx.guard()

	const n = 10
	var wg sync.WaitGroup
	results := make([]error, n)
	start := make(chan struct{})
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = g.Submit(context.Background(), "tok-open", testutil.ValidAnswers())
		}(i)
	}
	close(start)
	wg.Wait()

	submitted, rejected := 0, 0
	for i, err := range results {
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, ErrAlreadySubmitted):
			rejected++
		default:
			t.Errorf("submission %d: unexpected error %v", i, err)
		}
	}
	if submitted != 1 {
		t.Errorf("expected exactly 1 successful submission, got %d", submitted)
	}
	if rejected != n-1 {
		t.Errorf("expected %d already-submitted rejections, got %d", n-1, rejected)
	}
	if c := testutil.CountResponses(t, fx.db, fx.token.ID); c != 1 {
		t.Errorf("expected exactly 1 response row, got %d", c)
	}
}
