package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
	"github.com/tbourn/go-cart-recovery/internal/notify"
	"github.com/tbourn/go-cart-recovery/internal/repo"
)

type fakeRecoveryRepo struct {
	candidates []domain.CartTracking
	gapCutoff  time.Time
	limit      int

	// advanceErr maps cart id to the error AdvanceReminderStage returns.
	advanceErr map[string]error
	advanced   map[string]int
}

func (f *fakeRecoveryRepo) ListRecoveryCandidates(_ context.Context, _ *gorm.DB, gapCutoff time.Time, limit int) ([]domain.CartTracking, error) {
	f.gapCutoff = gapCutoff
	f.limit = limit
	return f.candidates, nil
}

func (f *fakeRecoveryRepo) AdvanceReminderStage(_ context.Context, _ *gorm.DB, id string, next int, _ time.Time, _ string) error {
	if err, ok := f.advanceErr[id]; ok {
		return err
	}
	if f.advanced == nil {
		f.advanced = map[string]int{}
	}
	f.advanced[id] = next
	return nil
}

type capturingMailer struct {
	sent []notify.Email
	err  error
}

func (m *capturingMailer) Send(_ context.Context, msg notify.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func recoveryCandidate(id string, stage int, quiet time.Duration) domain.CartTracking {
	email := id + "@example.com"
	name := "Ada"
	return domain.CartTracking{
		ID:             id,
		Status:         domain.CartStatusAbandoned,
		CartTotal:      decimal.NewFromFloat(192.30),
		CustomerEmail:  &email,
		CustomerName:   &name,
		ReminderStage:  stage,
		LastActivityAt: time.Now().UTC().Add(-quiet),
		Items:          []domain.CartItem{{ProductID: 1, Quantity: 2}},
	}
}

func newRecoveryService(fr *fakeRecoveryRepo, mailer notify.Mailer) *RecoveryService {
	return &RecoveryService{
		Repo:    fr,
		Catalog: twoProductCatalog(),
		Mailer:  mailer,
	}
}

func TestRun_SendsDueStageOne(t *testing.T) {
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
		recoveryCandidate("c1", 0, time.Hour),
	}}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 1 || res.EmailsSent != 1 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if fr.advanced["c1"] != 1 {
		t.Fatalf("stage not advanced: %+v", fr.advanced)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mail.sent))
	}
	msg := mail.sent[0]
	if msg.To != "c1@example.com" {
		t.Fatalf("wrong recipient: %s", msg.To)
	}
	if !strings.Contains(msg.Body, "Trail Shoe x2") {
		t.Fatalf("line items not rendered: %q", msg.Body)
	}
	if strings.Contains(msg.Body, "off with code") {
		t.Fatalf("discount must not appear before the final stage")
	}
}

func TestRun_NotYetDueIsSkipped(t *testing.T) {
	// Stage 1 needs 30 quiet minutes; this cart has 10.
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
		recoveryCandidate("c1", 0, 10*time.Minute),
	}}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || res.EmailsSent != 0 {
		t.Fatalf("expected skip, got %+v", res)
	}
	if len(mail.sent) != 0 || fr.advanced != nil {
		t.Fatalf("nothing should be sent or advanced")
	}
}

func TestRun_StageDelaysEscalate(t *testing.T) {
	cases := []struct {
		name  string
		stage int
		quiet time.Duration
		sent  bool
	}{
		{"stage 2 too early", 1, time.Hour, false},
		{"stage 2 due", 1, 3 * time.Hour, true},
		{"stage 3 too early", 2, 12 * time.Hour, false},
		{"stage 3 due", 2, 25 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
				recoveryCandidate("c1", tc.stage, tc.quiet),
			}}
			mail := &capturingMailer{}
			svc := newRecoveryService(fr, mail)

			res, err := svc.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := res.EmailsSent == 1; got != tc.sent {
				t.Fatalf("sent = %v, want %v (%+v)", got, tc.sent, res)
			}
		})
	}
}

func TestRun_DiscountOnlyAtFinalStage(t *testing.T) {
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
		recoveryCandidate("c1", 2, 25*time.Hour),
	}}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)
	svc.DiscountCode = "COMEBACK10"
	svc.DiscountPercent = 10

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 email")
	}
	if !strings.Contains(mail.sent[0].Body, "10% off with code COMEBACK10") {
		t.Fatalf("final-stage discount missing: %q", mail.sent[0].Body)
	}
}

func TestRun_EmptyDiscountCodeDisablesIncentive(t *testing.T) {
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
		recoveryCandidate("c1", 2, 25*time.Hour),
	}}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(mail.sent[0].Body, "off with code") {
		t.Fatalf("discount should be disabled without a code")
	}
}

func TestRun_DelistedItemsSkipRecord(t *testing.T) {
	cand := recoveryCandidate("c1", 0, time.Hour)
	cand.Items = []domain.CartItem{{ProductID: 404, Quantity: 1}}
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{cand}}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || len(mail.sent) != 0 || fr.advanced != nil {
		t.Fatalf("undisplayable record must be skipped untouched: %+v", res)
	}
}

func TestRun_SendFailureDoesNotAdvanceStage(t *testing.T) {
	fr := &fakeRecoveryRepo{candidates: []domain.CartTracking{
		recoveryCandidate("c1", 0, time.Hour),
		recoveryCandidate("c2", 0, time.Hour),
	}}
	mail := notify.MailerFunc(func(_ context.Context, msg notify.Email) error {
		if msg.To == "c1@example.com" {
			return errors.New("smtp refused")
		}
		return nil
	})
	svc := newRecoveryService(fr, mail)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "smtp refused") {
		t.Fatalf("delivery failure not surfaced: %+v", res)
	}
	if _, ok := fr.advanced["c1"]; ok {
		t.Fatalf("failed send must not advance the stage")
	}
	// The other record in the batch still goes out.
	if res.EmailsSent != 1 || fr.advanced["c2"] != 1 {
		t.Fatalf("batch not isolated: %+v", res)
	}
}

func TestRun_StaleAdvanceIsSilent(t *testing.T) {
	fr := &fakeRecoveryRepo{
		candidates: []domain.CartTracking{recoveryCandidate("c1", 0, time.Hour)},
		advanceErr: map[string]error{"c1": repo.ErrStaleRecord},
	}
	mail := &capturingMailer{}
	svc := newRecoveryService(fr, mail)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A faster concurrent run won the guarded update; not an error.
	if len(res.Errors) != 0 || res.EmailsSent != 0 || res.Skipped != 1 {
		t.Fatalf("stale advance should be a silent skip: %+v", res)
	}
}

func TestRun_GapAndBatchDefaults(t *testing.T) {
	fr := &fakeRecoveryRepo{}
	svc := newRecoveryService(fr, &capturingMailer{})

	before := time.Now().UTC()
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fr.limit != DefaultRecoveryBatch {
		t.Fatalf("batch default not applied: %d", fr.limit)
	}
	wantCutoff := before.Add(-DefaultRecoveryGap)
	if fr.gapCutoff.Before(wantCutoff.Add(-time.Second)) || fr.gapCutoff.After(wantCutoff.Add(time.Second)) {
		t.Fatalf("gap cutoff %v not near %v", fr.gapCutoff, wantCutoff)
	}

	// Oversized batch settings are clamped back to the cap.
	svc.BatchSize = 500
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fr.limit != DefaultRecoveryBatch {
		t.Fatalf("oversized batch not clamped: %d", fr.limit)
	}
}
