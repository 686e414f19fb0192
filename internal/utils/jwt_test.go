package utils

import (
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    snap := UserSnapshot{ID: 7, Username: "kara", RoleID: 2, EntityID: 31}
    tok, err := NewAccessToken("secret", "HS256", snap, 5)
    require.NoError(t, err)
    require.NotEmpty(t, tok.Token)
    assert.WithinDuration(t, time.Now().UTC().Add(5*time.Minute), tok.Exp, 2*time.Second)

    got, err := ParseAccessToken("secret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, snap, got)
}

func TestAccessTokenAlgorithms(t *testing.T) {
    snap := UserSnapshot{ID: 1, Username: "a", RoleID: 3, EntityID: 2}
    for _, alg := range []string{"HS256", "HS384", "HS512", "bogus"} {
        tok, err := NewAccessToken("secret", alg, snap, 5)
        require.NoError(t, err, alg)
        got, err := ParseAccessToken("secret", tok.Token)
        require.NoError(t, err, alg)
        assert.Equal(t, snap, got, alg)
    }
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
    tok, err := NewAccessToken("secret", "HS256", UserSnapshot{ID: 1}, 5)
    require.NoError(t, err)

    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenExpired(t *testing.T) {
    tok, err := NewAccessToken("secret", "HS256", UserSnapshot{ID: 1}, -1)
    require.NoError(t, err)

    _, err = ParseAccessToken("secret", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenTampered(t *testing.T) {
    tok, err := NewAccessToken("secret", "HS256", UserSnapshot{ID: 1, Username: "a"}, 5)
    require.NoError(t, err)

    parts := strings.Split(tok.Token, ".")
    require.Len(t, parts, 3)
    tampered := parts[0] + "." + parts[1] + "x." + parts[2]
    _, err = ParseAccessToken("secret", tampered)
    assert.ErrorIs(t, err, ErrInvalidToken)

    _, err = ParseAccessToken("secret", "not-a-token")
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRefreshToken(t *testing.T) {
    a, err := NewRefreshToken(7)
    require.NoError(t, err)
    b, err := NewRefreshToken(7)
    require.NoError(t, err)

    assert.Len(t, a.Raw, 96)
    assert.NotEqual(t, a.Raw, b.Raw)
    assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), a.Exp, 2*time.Second)
}

func TestHashRefreshRaw(t *testing.T) {
    h1 := HashRefreshRaw("abc")
    h2 := HashRefreshRaw("abc")
    h3 := HashRefreshRaw("abd")

    assert.Equal(t, h1, h2)
    assert.NotEqual(t, h1, h3)
    assert.Len(t, h1, 64)
}
