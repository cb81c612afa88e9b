package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: "Admin", want: RoleAdmin},
		{in: "ADMIN", want: RoleAdmin},
		{in: "1", want: RoleAdmin},
		{in: "Manager", want: RoleManager},
		{in: "2", want: RoleManager},
		{in: " client ", want: RoleClient},
		{in: "3", want: RoleClient},
		{in: "4", wantErr: true},
		{in: "", wantErr: true},
		{in: "root", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
	assert.False(t, Role("Admin").Valid())
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, h.Verify("secret1", hash))
	assert.False(t, h.Verify("secret2", hash))
	assert.False(t, h.Verify("secret1", "not-a-hash"))

	other, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ per hash")
}

func TestNewTokens_ShortSecret(t *testing.T) {
	_, err := NewTokens(TokenConfig{Secret: "short"})
	assert.Error(t, err)
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens, err := NewTokens(TokenConfig{Secret: testSecret, Issuer: "fenceorders", Audience: "fenceorders-api"})
	require.NoError(t, err)

	before := time.Now()
	token, expires, err := tokens.Issue(42, "alice", "a@x.com", RoleClient)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(60*time.Minute), expires, 5*time.Second)

	p, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: 42, Username: "alice", Email: "a@x.com", Role: RoleClient}, p)
}

func TestTokens_ParseRejects(t *testing.T) {
	tokens, err := NewTokens(TokenConfig{Secret: testSecret, Issuer: "fenceorders", Audience: "fenceorders-api"})
	require.NoError(t, err)

	sign := func(claims Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{
			Role: "client",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "7",
				Issuer:    "fenceorders",
				Audience:  jwt.ClaimStrings{"fenceorders-api"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	badSubject := valid()
	badSubject.Subject = "abc"
	zeroSubject := valid()
	zeroSubject.Subject = "0"
	badRole := valid()
	badRole.Role = "root"

	cases := map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": sign(valid(), "ffffffffffffffffffffffffffffffff"),
		"expired":      sign(expired, testSecret),
		"wrong issuer": sign(wrongIssuer, testSecret),
		"bad subject":  sign(badSubject, testSecret),
		"zero subject": sign(zeroSubject, testSecret),
		"bad role":     sign(badRole, testSecret),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokens_LegacyRoleClaim(t *testing.T) {
	tokens, err := NewTokens(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	claims := Claims{
		Role: "1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "3",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	p, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, p.Role)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 1, Role: RoleManager})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, p.Is(RoleAdmin, RoleManager))
	assert.False(t, p.Is(RoleClient))
}
