package basicauth

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicCredentials_Authorize(t *testing.T) {
	tests := []struct {
		name               string
		username, password string
		method             string
		want               map[string]string
	}{
		{
			name:     "handshake",
			username: "alice", password: "s3cret",
			method: HandshakeMethod,
			want:   map[string]string{"Authorization": "Basic YWxpY2U6czNjcmV0"},
		},
		{
			name:   "empty pair",
			method: HandshakeMethod,
			want:   map[string]string{"Authorization": "Basic Og=="},
		},
		{
			name:     "colon in username",
			username: "al:ice", password: "x",
			method: HandshakeMethod,
			want:   map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("al:ice:x"))},
		},
		{
			name:     "upper case method",
			username: "alice", password: "s3cret",
			method: strings.ToUpper(HandshakeMethod),
			want:   map[string]string{"Authorization": "Basic YWxpY2U6czNjcmV0"},
		},
		{
			name:     "lower case method",
			username: "alice", password: "s3cret",
			method: strings.ToLower(HandshakeMethod),
			want:   map[string]string{"Authorization": "Basic YWxpY2U6czNjcmV0"},
		},
		{
			name:     "other method",
			username: "alice", password: "s3cret",
			method: "SomeOtherMethod",
			want:   map[string]string{},
		},
		{
			name:     "whoami",
			username: "alice", password: "s3cret",
			method: WhoamiMethod,
			want:   map[string]string{},
		},
		{
			name:     "prefix of handshake",
			username: "alice", password: "s3cret",
			method: strings.TrimSuffix(HandshakeMethod, "shake"),
			want:   map[string]string{},
		},
		{
			name:     "handshake with suffix",
			username: "alice", password: "s3cret",
			method: HandshakeMethod + "2",
			want:   map[string]string{},
		},
		{
			name:   "empty method",
			method: "",
			want:   map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBasicCredentials(tt.username, tt.password).Authorize(tt.method)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBasicCredentials_RoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"alice", "s3cret"},
		{"", ""},
		{"bob", "pass:with:colons"},
		{"üñîçødé", "пароль"},
		{"a b", " \t~!@#$%^&*()"},
		{strings.Repeat("u", 300), strings.Repeat("p", 300)},
	}
	for _, p := range pairs {
		md, err := NewBasicCredentials(p[0], p[1]).Authorize(HandshakeMethod)
		require.NoError(t, err)
		require.Len(t, md, 1)

		value := md[AuthorizationHeader]
		require.True(t, strings.HasPrefix(value, BasicPrefix))
		assert.NotContains(t, value, "\n")

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, BasicPrefix))
		require.NoError(t, err)
		assert.Equal(t, p[0]+":"+p[1], string(raw))

		username, password, err := parseBasic(value)
		require.NoError(t, err)
		assert.Equal(t, p[0], username)
		assert.Equal(t, p[1], password)
	}
}

func TestBasicCredentials_Idempotent(t *testing.T) {
	c := NewBasicCredentials("alice", "s3cret")
	first, err := c.Authorize(HandshakeMethod)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := c.Authorize(HandshakeMethod)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestBasicCredentials_Concurrent(t *testing.T) {
	c := NewBasicCredentials("alice", "s3cret")

	var wg sync.WaitGroup
	errs := make(chan string, 200)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			md, err := c.Authorize(HandshakeMethod)
			if err != nil || md[AuthorizationHeader] != "Basic YWxpY2U6czNjcmV0" {
				errs <- "handshake"
			}
		}()
		go func() {
			defer wg.Done()
			md, err := c.Authorize(WhoamiMethod)
			if err != nil || len(md) != 0 {
				errs <- "whoami"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("unexpected result for %s", e)
	}
}

func TestBasicCredentials_EncodingError(t *testing.T) {
	tests := []struct {
		name               string
		username, password string
		field              string
	}{
		{"bad username", "al\xffice", "s3cret", "username"},
		{"bad password", "alice", "s3\xc3cret", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBasicCredentials(tt.username, tt.password)

			md, err := c.Authorize(HandshakeMethod)
			assert.Nil(t, md)
			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.field, encErr.Field)
			assert.NotContains(t, err.Error(), tt.username)
			assert.NotContains(t, err.Error(), tt.password)

			// only the handshake encodes credentials
			md, err = c.Authorize(WhoamiMethod)
			require.NoError(t, err)
			assert.Empty(t, md)
		})
	}
}

func TestBasicCredentials_GetRequestMetadataWithoutRequestInfo(t *testing.T) {
	md, err := NewBasicCredentials("alice", "s3cret").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, md)
	assert.Empty(t, md)
}

func TestBasicCredentials_RequireTransportSecurity(t *testing.T) {
	c := NewBasicCredentials("alice", "s3cret")
	assert.True(t, c.RequireTransportSecurity())

	i := c.WithInsecure(true)
	assert.False(t, i.RequireTransportSecurity())
	assert.True(t, c.RequireTransportSecurity(), "WithInsecure must not modify the receiver")
}

func Test_parseBasic(t *testing.T) {
	tests := []struct {
		name               string
		header             string
		username, password string
		wantErr            bool
	}{
		{"valid", "Basic YWxpY2U6czNjcmV0", "alice", "s3cret", false},
		{"scheme case", "bAsIc YWxpY2U6czNjcmV0", "alice", "s3cret", false},
		{"empty pair", "Basic Og==", "", "", false},
		{"first colon splits", "Basic " + base64.StdEncoding.EncodeToString([]byte("al:ice:x")), "al", "ice:x", false},
		{"missing", "", "", "", true},
		{"bearer", "Bearer abc", "", "", true},
		{"bad base64", "Basic ***", "", "", true},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("alice")), "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, password, err := parseBasic(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, username)
			assert.Equal(t, tt.password, password)
		})
	}
}
