package config

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		Port:                     "8080",
		JWTSecret:                "dev-secret",
		AccessTokenExpireMinutes: 30,
		LoginTokenExpireMinutes:  60,
		StorageDriver:            "local",
		MediaDir:                 "media",
		MaxUploadMB:              10,
		AllowedOrigins:           "*",
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_UPLOAD_MB", "3")
	t.Setenv("BLOCKED_IPS", "10.0.0.1, 10.0.0.2,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(3*1024*1024), cfg.MaxUploadBytes())
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.BlockedIPList())
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.LoginTokenTTL())
	assert.Equal(t, "local", cfg.StorageDriver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"no secret source", func(c *Config) { c.JWTSecret = "" }, true},
		{"ssm secret only", func(c *Config) { c.JWTSecret = ""; c.JWTSecretSSMParam = "/blog/jwt" }, false},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, true},
		{"unknown storage", func(c *Config) { c.StorageDriver = "ftp" }, true},
		{"s3 without bucket", func(c *Config) { c.StorageDriver = "s3" }, true},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }, true},
		{"trusted proxies", func(c *Config) { c.TrustedProxies = "10.0.0.0/8, 192.0.2.7, ::1" }, false},
		{"bad trusted proxy", func(c *Config) { c.TrustedProxies = "10.0.0.0/33" }, true},
		{"production default secret", func(c *Config) { c.Env = "production"; c.JWTSecret = defaultJWTSecret }, true},
		{"production short secret", func(c *Config) { c.Env = "production"; c.JWTSecret = "short" }, true},
		{"production strong secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTitleBlocklist_LowerCases(t *testing.T) {
	c := validConfig()
	c.BlockedTitleWords = "Spam, CASINO"
	assert.Equal(t, []string{"spam", "casino"}, c.TitleBlocklist())
}

type fakeParameterGetter struct {
	value string
	err   error
	asked string
}

func (f *fakeParameterGetter) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.asked = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestResolveSecretsWith(t *testing.T) {
	c := validConfig()
	c.JWTSecretSSMParam = "/blog/jwt"

	client := &fakeParameterGetter{value: "from-ssm"}
	require.NoError(t, c.resolveSecretsWith(context.Background(), client))
	assert.Equal(t, "/blog/jwt", client.asked)
	assert.Equal(t, "from-ssm", c.JWTSecret)

	failing := &fakeParameterGetter{err: errors.New("access denied")}
	assert.Error(t, c.resolveSecretsWith(context.Background(), failing))
}

func TestResolveSecrets_NoParamIsNoop(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.ResolveSecrets(context.Background()))
	assert.Equal(t, "dev-secret", c.JWTSecret)
}

func TestTrustedProxyNets(t *testing.T) {
	c := validConfig()
	c.TrustedProxies = "10.0.0.0/8, 192.0.2.7"

	nets, err := c.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.True(t, nets[0].Contains(net.ParseIP("10.1.2.3")))
	assert.True(t, nets[1].Contains(net.ParseIP("192.0.2.7")))
	assert.False(t, nets[1].Contains(net.ParseIP("192.0.2.8")))

	c.TrustedProxies = "proxy.internal"
	_, err = c.TrustedProxyNets()
	assert.Error(t, err)
}
