package service

import (
	"context"
	"testing"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	users    *UserService
	tokens   *auth.TokenManager
	sessions *auth.MemorySessionStore
}

func newUserFixture(t *testing.T, captcha *CaptchaService) *userFixture {
	t.Helper()
	db := newTestDB(t)

	tokens, err := auth.NewTokenManager(&config.JWTConfig{
		SecretKey: "test-secret",
		ExpiresIn: "1h",
		Issuer:    "StartPage",
		MachineID: 1,
	})
	require.NoError(t, err)

	sessions := auth.NewMemorySessionStore()
	users := NewUserService(db, tokens, sessions, captcha)
	users.baseURL = func() string { return testBaseURL }

	_, err = users.CreateUser(context.Background(), "admin", "secret", "")
	require.NoError(t, err)
	return &userFixture{users: users, tokens: tokens, sessions: sessions}
}

func (f *userFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, err := f.users.Login(context.Background(), &dto.LoginRequest{Username: username, Password: password}, "127.0.0.1")
	require.NoError(t, err)
	return resp.Token
}

func (f *userFixture) isCurrent(t *testing.T, username, token string) bool {
	t.Helper()
	ok, err := auth.IsCurrent(context.Background(), f.sessions, username, token)
	require.NoError(t, err)
	return ok
}

func TestUserLogin(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()

	resp, err := f.users.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "secret"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := f.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username())
	assert.True(t, f.isCurrent(t, "admin", resp.Token))

	profile, err := f.users.Profile(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Nickname)
	assert.NotEmpty(t, profile.LastLoginAt)

	var user model.User
	require.NoError(t, f.users.db.Where("username = ?", "admin").First(&user).Error)
	assert.Equal(t, "10.0.0.1", user.LastLoginIP)
}

func TestUserLoginFailures(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()

	_, err := f.users.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "wrong"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = f.users.Login(ctx, &dto.LoginRequest{Username: "nobody", Password: "secret"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "用户名或密码错误", err.Error())
}

func TestUserLoginReplacesSession(t *testing.T) {
	f := newUserFixture(t, nil)

	first := f.login(t, "admin", "secret")
	second := f.login(t, "admin", "secret")

	assert.NotEqual(t, first, second)
	assert.False(t, f.isCurrent(t, "admin", first))
	assert.True(t, f.isCurrent(t, "admin", second))

	require.NoError(t, f.users.Logout(context.Background(), "admin"))
	assert.False(t, f.isCurrent(t, "admin", second))
}

func TestUserLoginCaptcha(t *testing.T) {
	captcha := NewCaptchaService(&config.CaptchaConfig{Enabled: true, Height: 80, Width: 240, Length: 4})
	f := newUserFixture(t, captcha)
	ctx := context.Background()
	assert.True(t, f.users.CaptchaEnabled())

	_, err := f.users.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "secret"}, "")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	generated, err := captcha.Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, generated.Image)

	require.NoError(t, captcha.store.Set(generated.CaptchaID, "1234"))
	_, err = f.users.Login(ctx, &dto.LoginRequest{
		Username: "admin", Password: "secret", CaptchaID: generated.CaptchaID, CaptchaCode: "1234",
	}, "")
	require.NoError(t, err)

	// 验证码只能使用一次
	_, err = f.users.Login(ctx, &dto.LoginRequest{
		Username: "admin", Password: "secret", CaptchaID: generated.CaptchaID, CaptchaCode: "1234",
	}, "")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestUserUpdate(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()
	token := f.login(t, "admin", "secret")

	_, _, err := f.users.Update(ctx, "admin", &dto.UserUpdateRequest{Password: "wrong", Nickname: "x"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	resp, renamed, err := f.users.Update(ctx, "admin", &dto.UserUpdateRequest{
		Password: "secret",
		Nickname: "Admin",
		Avatar:   testBaseURL + "/me.png",
	})
	require.NoError(t, err)
	assert.False(t, renamed)
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, "Admin", resp.Nickname)
	assert.Equal(t, testBaseURL+"/me.png", resp.Avatar)
	assert.True(t, f.isCurrent(t, "admin", token))

	var user model.User
	require.NoError(t, f.users.db.Where("username = ?", "admin").First(&user).Error)
	assert.Equal(t, "me.png", user.Avatar)
}

func TestUserRenameRevokesSession(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()
	_, err := f.users.CreateUser(ctx, "taken", "secret", "")
	require.NoError(t, err)
	token := f.login(t, "admin", "secret")

	_, _, err = f.users.Update(ctx, "admin", &dto.UserUpdateRequest{Password: "secret", Username: "taken"})
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))
	assert.True(t, f.isCurrent(t, "admin", token))

	resp, renamed, err := f.users.Update(ctx, "admin", &dto.UserUpdateRequest{Password: "secret", Username: "root"})
	require.NoError(t, err)
	assert.True(t, renamed)
	assert.Equal(t, "root", resp.Username)
	assert.False(t, f.isCurrent(t, "admin", token))

	f.login(t, "root", "secret")
}

func TestUserChangePassword(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()
	token := f.login(t, "admin", "secret")

	err := f.users.ChangePassword(ctx, "admin", &dto.PasswordUpdateRequest{Password: "wrong", NewPassword: "changed"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	require.NoError(t, f.users.ChangePassword(ctx, "admin", &dto.PasswordUpdateRequest{Password: "secret", NewPassword: "changed"}))
	assert.False(t, f.isCurrent(t, "admin", token))

	_, err = f.users.Login(ctx, &dto.LoginRequest{Username: "admin", Password: "secret"}, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	f.login(t, "admin", "changed")
}

func TestUserAdminOperations(t *testing.T) {
	f := newUserFixture(t, nil)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, "admin", "other", "")
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))
	_, err = f.users.CreateUser(ctx, "", "pw", "")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	token := f.login(t, "admin", "secret")
	require.NoError(t, f.users.ResetPassword(ctx, "admin", "reset"))
	assert.False(t, f.isCurrent(t, "admin", token))
	f.login(t, "admin", "reset")

	assert.True(t, apperr.Is(f.users.ResetPassword(ctx, "nobody", "x"), apperr.KindNotFound))

	users, err := f.users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
}
