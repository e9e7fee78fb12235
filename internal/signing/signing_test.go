package signing

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSigner(secret string, now time.Time) *Signer {
	s := NewSigner(secret, "https://audio.444radio.test/", time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestSigner_Sign(t *testing.T) {
	s := fixedSigner("top-secret", time.Unix(1_700_000_000, 0))
	base := s.Sign("users/u1/music/1-track.mp3", 1_700_003_600)

	assert.Len(t, base, 64)
	assert.Equal(t, base, s.Sign("users/u1/music/1-track.mp3", 1_700_003_600), "same inputs must sign the same")

	tests := []struct {
		name string
		sig  string
	}{
		{"different key", s.Sign("users/u1/music/2-track.mp3", 1_700_003_600)},
		{"different expiry", s.Sign("users/u1/music/1-track.mp3", 1_700_003_601)},
		{"different secret", fixedSigner("other-secret", time.Unix(0, 0)).Sign("users/u1/music/1-track.mp3", 1_700_003_600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.sig)
		})
	}
}

func TestSigner_SignedURL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner("top-secret", now)

	raw, exp := s.SignedURL("users/u1/music/1-my track.mp3", 0)
	assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "audio.444radio.test", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/audio/users/u1/music/"))
	assert.Equal(t, "1700003600", u.Query().Get("exp"))
	assert.Equal(t, s.Sign("users/u1/music/1-my track.mp3", 1_700_003_600), u.Query().Get("sig"))
}

func TestSigner_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner("top-secret", now)
	key := "users/u1/music/1-track.mp3"
	good := s.Sign(key, now.Unix()+60)

	tests := []struct {
		name    string
		key     string
		exp     string
		sig     string
		wantErr error
	}{
		{name: "valid", key: key, exp: "1700000060", sig: good},
		{name: "valid upper case", key: key, exp: "1700000060", sig: strings.ToUpper(good)},
		{name: "expired", key: key, exp: "1699999999", sig: s.Sign(key, 1_699_999_999), wantErr: ErrExpired},
		{name: "forged and expired", key: key, exp: "1699999999", sig: strings.Repeat("0", 64), wantErr: ErrInvalidSignature},
		{name: "tampered key", key: "users/u2/music/1-track.mp3", exp: "1700000060", sig: good, wantErr: ErrInvalidSignature},
		{name: "tampered expiry", key: key, exp: "1700000061", sig: good, wantErr: ErrInvalidSignature},
		{name: "bad expiry", key: key, exp: "soon", sig: good, wantErr: ErrInvalidSignature},
		{name: "empty signature", key: key, exp: "1700000060", sig: "", wantErr: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Verify(tt.key, tt.exp, tt.sig)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
