package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type authFixture struct {
	*forum
	audit *fakeAuditRepo
	email *recordingEmail
	svc   AuthService
}

func newAuthFixture() *authFixture {
	f := newForum()
	fx := &authFixture{forum: f, audit: &fakeAuditRepo{}, email: &recordingEmail{}}
	fx.svc = NewAuthService(f.users, f.roles, fx.audit, fx.email, testSecret, time.Hour, "https://forum.example.com/")
	return fx
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	i := strings.Index(link, "token=")
	require.NotEqual(t, -1, i, link)
	return link[i+len("token="):]
}

func TestRegisterAndLogin(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()

	res, err := fx.svc.Register(ctx, RegisterRequest{
		Email:     " Alice@Example.com ",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Archer",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, []string{model.RoleUser}, res.User.RoleNames())
	assert.NotEmpty(t, res.Token)

	requester, err := fx.svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, requester.UserID)
	assert.Equal(t, []string{model.RoleUser}, requester.Roles)

	login, err := fx.svc.Login(ctx, LoginRequest{Email: "ALICE@example.com", Password: "secret1"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLogin)

	assert.Equal(t, []string{model.AuditRegister, model.AuditLogin}, fx.audit.actions())

	jobs := fx.email.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, EmailTypeVerify, jobs[0].Type)
	assert.Equal(t, "alice@example.com", jobs[0].To)
	assert.True(t, strings.HasPrefix(jobs[0].Link, "https://forum.example.com/verify-email?token="))
}

func TestRegister_Rejections(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	req := RegisterRequest{Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Baker"}

	_, err := fx.svc.Register(ctx, req, "")
	require.NoError(t, err)

	_, err = fx.svc.Register(ctx, req, "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = fx.svc.Register(ctx, RegisterRequest{Email: "c@example.com", Password: "secret1", FirstName: "<b></b>", LastName: "C"}, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestLogin_Failures(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	_, err := fx.svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Baker"}, "")
	require.NoError(t, err)

	_, err = fx.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "nope"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = fx.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestValidateToken_Rejections(t *testing.T) {
	fx := newAuthFixture()

	_, err := fx.svc.ValidateToken("garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	foreign, err := util.GenerateToken("u1", "u1@example.com", nil, "another-secret", time.Hour)
	require.NoError(t, err)
	_, err = fx.svc.ValidateToken(foreign)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	expired, err := util.GenerateToken("u1", "u1@example.com", nil, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = fx.svc.ValidateToken(expired)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestMeAndRefresh(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	res, err := fx.svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Baker"}, "")
	require.NoError(t, err)
	requester := &Requester{UserID: res.User.ID, Email: res.User.Email, Roles: res.User.RoleNames()}

	me, err := fx.svc.Me(ctx, requester)
	require.NoError(t, err)
	assert.Equal(t, "Bob Baker", me.FullName())

	refreshed, err := fx.svc.RefreshToken(ctx, requester)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)

	_, err = fx.svc.Me(ctx, &Requester{UserID: "5b7f0c56-2c1e-4c43-9a43-0b3b9f1f3c11"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = fx.svc.Me(ctx, nil)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestVerifyEmail(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	res, err := fx.svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Baker"}, "")
	require.NoError(t, err)
	token := tokenFromLink(t, fx.email.Jobs()[0].Link)

	assert.True(t, apperr.Is(fx.svc.VerifyEmail(ctx, ""), apperr.KindInvalidArgument))
	assert.True(t, apperr.Is(fx.svc.VerifyEmail(ctx, "unknown"), apperr.KindInvalidArgument))
	require.NoError(t, fx.svc.VerifyEmail(ctx, token))

	user, err := fx.users.FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, user.IsEmailVerified)
	assert.Nil(t, user.VerifyToken)

	// tokens are single use
	assert.True(t, apperr.Is(fx.svc.VerifyEmail(ctx, token), apperr.KindInvalidArgument))
}

func TestPasswordReset(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	_, err := fx.svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Baker"}, "")
	require.NoError(t, err)

	require.NoError(t, fx.svc.ForgotPassword(ctx, "nobody@example.com"))
	require.Len(t, fx.email.Jobs(), 1)

	require.NoError(t, fx.svc.ForgotPassword(ctx, "Bob@example.com"))
	jobs := fx.email.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, EmailTypeReset, jobs[1].Type)
	token := tokenFromLink(t, jobs[1].Link)

	err = fx.svc.ResetPassword(ctx, ResetPasswordRequest{Token: "wrong", NewPassword: "changed1"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	require.NoError(t, fx.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "changed1"}))
	_, err = fx.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "changed1"}, "")
	assert.NoError(t, err)
	_, err = fx.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "secret1"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	err = fx.svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "again12"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestQueueEmailSender(t *testing.T) {
	pub := &recordingPublisher{}
	sender := NewEmailSender(pub)

	require.NoError(t, sender.Send(context.Background(), EmailJob{Type: EmailTypeVerify, To: "a@example.com"}))
	msgs := pub.Messages(EmailExchange)
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0]), `"type":"verify_email"`)

	assert.NoError(t, NewEmailSender(nil).Send(context.Background(), EmailJob{Type: EmailTypeReset}))
}
