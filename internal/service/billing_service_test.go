package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/repository"
	"github.com/mika2333/daily_english_server/internal/testutil"
)

type fakeProvider struct {
	event     *stripe.Event
	verifyErr error

	subs      map[string]*stripe.Subscription
	customers map[string]*stripe.Customer

	canceled          []string
	periodEndCanceled []string
	checkoutTrial     []int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subs:      map[string]*stripe.Subscription{},
		customers: map[string]*stripe.Customer{},
	}
}

func (f *fakeProvider) VerifyEvent(_ []byte, _ string) (*stripe.Event, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func (f *fakeProvider) GetSubscription(id string) (*stripe.Subscription, error) {
	if sub, ok := f.subs[id]; ok {
		return sub, nil
	}
	return nil, errors.New("no such subscription")
}

func (f *fakeProvider) CancelNow(id string) (*stripe.Subscription, error) {
	f.canceled = append(f.canceled, id)
	return f.subs[id], nil
}

func (f *fakeProvider) CancelAtPeriodEnd(id string) (*stripe.Subscription, error) {
	f.periodEndCanceled = append(f.periodEndCanceled, id)
	if sub, ok := f.subs[id]; ok {
		sub.CancelAtPeriodEnd = true
		return sub, nil
	}
	return nil, errors.New("no such subscription")
}

func (f *fakeProvider) GetCustomer(id string) (*stripe.Customer, error) {
	if c, ok := f.customers[id]; ok {
		return c, nil
	}
	return nil, errors.New("no such customer")
}

func (f *fakeProvider) CreateCheckoutSession(_ string, _ int64, trialDays int) (*stripe.CheckoutSession, error) {
	f.checkoutTrial = append(f.checkoutTrial, trialDays)
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.com/cs_test"}, nil
}

func testSubscription(id, customerID string, status stripe.SubscriptionStatus, cancelScheduled bool, uid int64) *stripe.Subscription {
	sub := &stripe.Subscription{
		ID:                id,
		Status:            status,
		CancelAtPeriodEnd: cancelScheduled,
		Customer:          &stripe.Customer{ID: customerID},
		CurrentPeriodEnd:  1790000000,
	}
	if uid > 0 {
		sub.Metadata = map[string]string{"uid": fmt.Sprintf("%d", uid)}
	}
	return sub
}

func subEvent(t *testing.T, eventID, eventType string, sub *stripe.Subscription) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(sub)
	require.NoError(t, err)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &obj))

	return &stripe.Event{
		ID:   eventID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw, Object: obj},
	}
}

func setupBillingService(t *testing.T) (*BillingService, *fakeProvider, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	provider := newFakeProvider()
	service := NewBillingService(
		repository.NewBillingRepository(db),
		repository.NewUserRepository(db),
		provider,
		nil,
		testConfig(),
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, provider, db, cleanup
}

func TestDerivePlan(t *testing.T) {
	cases := []struct {
		status          string
		cancelScheduled bool
		want            string
	}{
		{model.SubStatusTrialing, false, model.PlanStandard},
		{model.SubStatusTrialing, true, model.PlanFree},
		{model.SubStatusActive, false, model.PlanStandard},
		{model.SubStatusActive, true, model.PlanStandard},
		{model.SubStatusCanceled, false, model.PlanFree},
		{model.SubStatusCanceled, true, model.PlanFree},
		{model.SubStatusPastDue, false, model.PlanFree},
		{model.SubStatusPastDue, true, model.PlanFree},
		{"incomplete", false, model.PlanFree},
	}
	for _, c := range cases {
		got := DerivePlan(c.status, c.cancelScheduled)
		assert.Equal(t, c.want, got, "(%s, %v)", c.status, c.cancelScheduled)
	}
}

func TestBillingService_ProcessWebhook_BadSignature(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	provider.verifyErr = errors.New("signature mismatch")

	_, err := service.ProcessWebhook([]byte("{}"), "bad-sig")
	assert.ErrorIs(t, err, ErrBadWebhookSignature)

	// Hard rejection: nothing processed, nothing audited
	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBillingService_ProcessWebhook_Applied(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.created", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStandard, state.Plan)
	assert.Equal(t, model.SubStatusActive, state.SubscriptionStatus)
	assert.Equal(t, "sub_1", state.StripeSubscriptionID)
	assert.Equal(t, "cus_1", state.StripeCustomerID)
	assert.NotNil(t, state.CurrentPeriodEnd)

	audit, err := repository.NewBillingRepository(db).GetEvent("evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, audit.Outcome)
}

func TestBillingService_ProcessWebhook_RefetchTruth(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	// Event payload carries a stale status; the re-fetched object is current
	stale := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusPastDue, false, user.ID)
	fresh := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)
	provider.subs["sub_1"] = fresh
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", stale)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStandard, state.Plan)
	assert.Equal(t, model.SubStatusActive, state.SubscriptionStatus)
}

func TestBillingService_ProcessWebhook_TrialMarksUsed(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithEmail("trial@example.com"))

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusTrialing, false, user.ID)
	sub.TrialEnd = 1790000000
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.created", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	repo := repository.NewBillingRepository(db)
	state, err := repo.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStandard, state.Plan)
	assert.True(t, state.TrialUsed)
	assert.NotNil(t, state.TrialEndsAt)

	// Email hash recorded: recreating the account cannot reclaim the trial
	claimed, err := repo.TrialClaimed(EmailHash("trial@example.com"))
	require.NoError(t, err)
	assert.True(t, claimed)

	// trialUsed survives the transition out of trialing
	active := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)
	provider.subs["sub_1"] = active
	provider.event = subEvent(t, "evt_2", "customer.subscription.updated", active)

	_, err = service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)

	state, err = repo.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.True(t, state.TrialUsed)
}

type fakeNoticeMailer struct {
	sentTo []string
}

func (m *fakeNoticeMailer) SendTrialNotice(to string, _ *time.Time) error {
	m.sentTo = append(m.sentTo, to)
	return nil
}

func TestBillingService_ProcessWebhook_TrialNoticeSentOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	provider := newFakeProvider()
	mailer := &fakeNoticeMailer{}
	service := NewBillingService(
		repository.NewBillingRepository(db),
		repository.NewUserRepository(db),
		provider,
		mailer,
		testConfig(),
	)

	user := testutil.TestUser(t, db, testutil.WithEmail("notice@example.com"))

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusTrialing, false, user.ID)
	sub.TrialEnd = 1790000000
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.created", sub)

	_, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"notice@example.com"}, mailer.sentTo)

	// A later trialing event does not notify again
	sub.CurrentPeriodEnd = 1791000000
	provider.event = subEvent(t, "evt_2", "customer.subscription.updated", sub)

	_, err = service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"notice@example.com"}, mailer.sentTo)
}

func TestBillingService_ProcessWebhook_TrialCancelImmediate(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusTrialing, true, user.ID)
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	// Trial cancellation takes effect immediately
	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, state.Plan)

	// And the period-end cancel is converted into a cancel-now call
	assert.Equal(t, []string{"sub_1"}, provider.canceled)
}

func TestBillingService_ProcessWebhook_PaidCancelKeepsAccess(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, true, user.ID)
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", sub)

	_, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)

	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	// Paid users keep access through the paid period
	assert.Equal(t, model.PlanStandard, state.Plan)
	assert.True(t, state.CancelAtPeriodEnd)
	assert.Empty(t, provider.canceled)
}

func TestBillingService_ProcessWebhook_StaleSubscriptionIgnored(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID,
		testutil.WithPlan(model.PlanStandard, model.SubStatusActive),
		testutil.WithStripeIDs("cus_1", "sub_new"))

	// Residual event from the superseded subscription object
	old := testSubscription("sub_old", "cus_1", stripe.SubscriptionStatusCanceled, false, user.ID)
	provider.subs["sub_old"] = old
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", old)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeIgnored, outcome)

	// No mutation
	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStandard, state.Plan)
	assert.Equal(t, "sub_new", state.StripeSubscriptionID)
}

func TestBillingService_ProcessWebhook_CreatedSupersedes(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID,
		testutil.WithPlan(model.PlanFree, model.SubStatusCanceled),
		testutil.WithStripeIDs("cus_1", "sub_old"))

	sub := testSubscription("sub_new", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)
	provider.subs["sub_new"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.created", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_new", state.StripeSubscriptionID)
	assert.Equal(t, model.PlanStandard, state.Plan)
}

func TestBillingService_ProcessWebhook_UIDResolutionFallback(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID, testutil.WithStripeIDs("cus_1", "sub_1"))

	// No metadata anywhere: resolution falls back to the stored customer id
	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, 0)
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStandard, state.Plan)
}

func TestBillingService_ProcessWebhook_NoUID(t *testing.T) {
	service, provider, _, cleanup := setupBillingService(t)
	defer cleanup()

	sub := testSubscription("sub_unknown", "cus_unknown", stripe.SubscriptionStatusActive, false, 0)
	provider.subs["sub_unknown"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	// Unresolved, not fatal: no retry requested
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoUID, outcome)
}

func TestBillingService_ProcessWebhook_SkippedAndNoSub(t *testing.T) {
	service, provider, _, cleanup := setupBillingService(t)
	defer cleanup()

	provider.event = &stripe.Event{
		ID:   "evt_skip",
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: []byte("{}"), Object: map[string]interface{}{}},
	}
	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, outcome)

	provider.event = &stripe.Event{
		ID:   "evt_nosub",
		Type: "customer.subscription.updated",
		Data: &stripe.EventData{Raw: []byte("{}"), Object: map[string]interface{}{}},
	}
	outcome, err = service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoSub, outcome)
}

func TestBillingService_ProcessWebhook_NoopAndIdempotentAudit(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	sub := testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)
	provider.subs["sub_1"] = sub
	provider.event = subEvent(t, "evt_1", "customer.subscription.updated", sub)

	outcome, err := service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)

	// Redelivery of the same event: no state change, audit row overwritten
	outcome, err = service.ProcessWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoop, outcome)

	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	audit, err := repository.NewBillingRepository(db).GetEvent("evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoop, audit.Outcome)
}

func TestBillingService_CreateCheckout(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID)

	resp, err := service.CreateCheckout(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test", resp.SessionID)
	assert.NotEmpty(t, resp.URL)
	// Fresh user gets the configured trial
	assert.Equal(t, []int{7}, provider.checkoutTrial)
}

func TestBillingService_CreateCheckout_Duplicate(t *testing.T) {
	service, _, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID, testutil.WithPlan(model.PlanStandard, model.SubStatusActive))

	_, err := service.CreateCheckout(user.ID)
	assert.ErrorIs(t, err, ErrDuplicateSubscription)
}

func TestBillingService_CreateCheckout_NoSecondTrial(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	// trialUsed on the billing state suppresses the trial
	userA := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, userA.ID, testutil.WithTrialUsed())

	_, err := service.CreateCheckout(userA.ID)
	require.NoError(t, err)

	// A recreated account under a claimed email is also suppressed
	userB := testutil.TestUser(t, db, testutil.WithEmail("recreated@example.com"))
	testutil.TestBillingState(t, db, userB.ID)
	require.NoError(t, repository.NewBillingRepository(db).ClaimTrial(EmailHash("recreated@example.com")))

	_, err = service.CreateCheckout(userB.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0}, provider.checkoutTrial)
}

func TestBillingService_CancelSubscription(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID,
		testutil.WithPlan(model.PlanStandard, model.SubStatusActive),
		testutil.WithStripeIDs("cus_1", "sub_1"))
	provider.subs["sub_1"] = testSubscription("sub_1", "cus_1", stripe.SubscriptionStatusActive, false, user.ID)

	require.NoError(t, service.CancelSubscription(user.ID))
	// Scheduled at Stripe, not cancelled outright
	assert.Equal(t, []string{"sub_1"}, provider.periodEndCanceled)
	assert.Empty(t, provider.canceled)

	// The local mirror is left to webhook reconciliation
	state, err := repository.NewBillingRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.False(t, state.CancelAtPeriodEnd)
}

func TestBillingService_CancelSubscription_NothingToCancel(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	// No billing state at all
	userA := testutil.TestUser(t, db)
	assert.ErrorIs(t, service.CancelSubscription(userA.ID), ErrNoActiveSubscription)

	// Free plan
	userB := testutil.TestUser(t, db, testutil.WithEmail("free@example.com"))
	testutil.TestBillingState(t, db, userB.ID)
	assert.ErrorIs(t, service.CancelSubscription(userB.ID), ErrNoActiveSubscription)

	assert.Empty(t, provider.periodEndCanceled)
}

func TestBillingService_CancelSubscription_AlreadyScheduled(t *testing.T) {
	service, provider, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	state := testutil.TestBillingState(t, db, user.ID,
		testutil.WithPlan(model.PlanStandard, model.SubStatusActive),
		testutil.WithStripeIDs("cus_1", "sub_1"))
	state.CancelAtPeriodEnd = true
	require.NoError(t, db.Save(state).Error)

	// Repeat request is a no-op, no second call to Stripe
	require.NoError(t, service.CancelSubscription(user.ID))
	assert.Empty(t, provider.periodEndCanceled)
}

func TestBillingService_GetState_DefaultsFree(t *testing.T) {
	service, _, db, cleanup := setupBillingService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	state, err := service.GetState(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, state.Plan)
	assert.False(t, state.TrialUsed)
}
