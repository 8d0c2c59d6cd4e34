package service

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/model/dto"
	"github.com/mika2333/daily_english_server/internal/pkg/readtoken"
	"github.com/mika2333/daily_english_server/internal/repository"
	"github.com/mika2333/daily_english_server/internal/testutil"
)

type fakeChangeMailer struct {
	to   string
	link string
}

func (f *fakeChangeMailer) SendEmailChangeConfirmation(to, confirmLink string) error {
	f.to = to
	f.link = confirmLink
	return nil
}

func (f *fakeChangeMailer) token(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(f.link)
	require.NoError(t, err)
	return u.Query().Get("t")
}

func setupEmailChangeService(t *testing.T) (*EmailChangeService, *fakeChangeMailer, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mailer := &fakeChangeMailer{}
	service := NewEmailChangeService(repository.NewUserRepository(db), mailer, testConfig())

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, mailer, db, cleanup
}

func TestEmailChangeService_RequestChange(t *testing.T) {
	service, mailer, db, cleanup := setupEmailChangeService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithEmail("old@example.com"))

	err := service.RequestChange(user.ID, &dto.EmailChangeRequest{NewEmail: "new@example.com"})
	require.NoError(t, err)

	// Confirmation goes to the NEW address: proves ownership of the destination
	assert.Equal(t, "new@example.com", mailer.to)
	assert.True(t, strings.HasPrefix(mailer.link, "https://app.example.com/email-change/confirm?t="))
}

func TestEmailChangeService_RequestChange_EmailInUse(t *testing.T) {
	service, _, db, cleanup := setupEmailChangeService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestUser(t, db, testutil.WithEmail("claimed@example.com"))

	err := service.RequestChange(user.ID, &dto.EmailChangeRequest{NewEmail: "claimed@example.com"})
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestEmailChangeService_ConfirmChange(t *testing.T) {
	service, mailer, db, cleanup := setupEmailChangeService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithEmail("old@example.com"))

	require.NoError(t, service.RequestChange(user.ID, &dto.EmailChangeRequest{NewEmail: "new@example.com"}))
	require.NoError(t, service.ConfirmChange(mailer.token(t)))

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "new@example.com", updated.DeliveryEmail)
	assert.True(t, updated.DeliveryEmailOK)
}

func TestEmailChangeService_ConfirmChange_RaceReCheck(t *testing.T) {
	service, mailer, db, cleanup := setupEmailChangeService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithEmail("old@example.com"))
	require.NoError(t, service.RequestChange(user.ID, &dto.EmailChangeRequest{NewEmail: "new@example.com"}))

	// Another account claims the address between request and confirm
	testutil.TestUser(t, db, testutil.WithEmail("new@example.com"))

	err := service.ConfirmChange(mailer.token(t))
	assert.ErrorIs(t, err, ErrEmailInUse)

	var unchanged model.User
	require.NoError(t, db.First(&unchanged, user.ID).Error)
	assert.Equal(t, "old@example.com", unchanged.Email)
}

func TestEmailChangeService_ConfirmChange_BadToken(t *testing.T) {
	service, _, _, cleanup := setupEmailChangeService(t)
	defer cleanup()

	err := service.ConfirmChange("garbage")
	assert.ErrorIs(t, err, ErrInvalidChangeToken)
}

func TestEmailChangeService_ConfirmChange_WrongPurpose(t *testing.T) {
	service, _, db, cleanup := setupEmailChangeService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	// A read token must not be accepted as an email-change confirmation
	token, err := readtoken.Sign(&readtoken.Payload{
		UserID:    user.ID,
		DateKey:   "2026-08-31",
		Purpose:   readtoken.PurposeRead,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, testConfig().ReadToken.Secret)
	require.NoError(t, err)

	err = service.ConfirmChange(token)
	assert.ErrorIs(t, err, ErrInvalidChangeToken)
}
