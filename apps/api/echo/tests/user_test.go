package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-qa/apps/api/echo"
	"github.com/trezcool/masomo-qa/core/user"
	"github.com/trezcool/masomo-qa/testutil"
)

var errMissingToken = failure("unauthorized", "missing or malformed jwt")

func Test_userApi_login(t *testing.T) {
	stack.Reset()

	student := testutil.CreateUser(t, stack.UserRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, stack.UserRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", []string{user.RoleStudent}, false)

	reqMsg := "this field is required"
	authFailed := marchallObj(t, failure("validation_failed", "authentication failed"))

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, failure("validation_failed", "username: "+reqMsg, map[string]string{"username": reqMsg, "password": reqMsg})),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest, wantData: authFailed,
			body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest, wantData: authFailed,
			body: marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "lol"}),
		},
		{
			name: "deactivated", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, failure("forbidden", "account deactivated")),
		},
		{name: "by username", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: " HERO ", Password: "LolC@t123"})},
		{name: "by email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: "hero@test.cd", Password: "LolC@t123"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decodeData(t, rec, &resp)
				require.NotEmpty(t, resp.Token)

				claims := new(echoapi.Claims)
				_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
					return []byte(stack.Conf.SecretKey), nil
				})
				require.NoError(t, err)
				assert.Equal(t, student.ID, claims.Subject)
				assert.True(t, claims.IsStudent)

				usr, err := stack.UserSvc.GetByID(student.ID)
				require.NoError(t, err)
				assert.False(t, usr.LastLogin.IsZero())
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	stack.Reset()

	naughty := testutil.CreateUser(t, stack.UserRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, stack.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := echoapi.NewUserClaims(stack.Conf, student, now.Add(-2*stack.Conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := echoapi.GenerateToken(stack.Conf, unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Bad token", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, failure("forbidden", "account deactivated"))},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, failure("forbidden", "refresh has expired"))},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt)
			checkCodeAndData(t, tt, rec)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decodeData(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_nonceApi(t *testing.T) {
	stack.Reset()

	student := testutil.CreateUser(t, stack.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	tests := []struct {
		httpTest
		usr user.User
	}{
		{httpTest: httpTest{name: "anonymous frontend", path: "/v1/nonces/qa-frontend", wantCode: http.StatusOK}},
		{httpTest: httpTest{name: "student frontend", path: "/v1/nonces/qa-frontend", token: getToken(t, student), wantCode: http.StatusOK}, usr: student},
		{
			httpTest: httpTest{
				name: "student admin", path: "/v1/nonces/qa-admin", token: getToken(t, student), wantCode: http.StatusForbidden,
				wantData: marchallObj(t, failure("forbidden", "permission denied")),
			},
		},
		{httpTest: httpTest{name: "teacher admin", path: "/v1/nonces/qa-admin", token: getToken(t, teacher), wantCode: http.StatusOK}, usr: teacher},
		{httpTest: httpTest{name: "unknown action", path: "/v1/nonces/lol", wantCode: http.StatusNotFound}},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.NonceResponse
				decodeData(t, rec, &resp)
				assert.Equal(t, "X-QA-Nonce", resp.Header)
				assert.NoError(t, stack.Nonces.Verify(tt.usr.ID, resp.Action, resp.Nonce))
			}
		})
	}
}
