package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parameters:
  prefix: edge
server:
  cors_allowed_origins: ["https://app.example.com"]
rotation:
  secret_id: edge-signing-key
  key_group_id: KG1
`), 0o600))

	t.Setenv("JWKS_KEY_SELECTION", "kid")
	t.Setenv("STORE_DRIVER", "memory")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "edge", c.Parameters.Prefix)
	require.Equal(t, "kid", c.Identity.KeySelection)
	require.Equal(t, "memory", c.Store.Driver)
	require.Equal(t, "us-east-1", c.Store.Region)
	require.Equal(t, "/remove", c.Server.RemovePath)
	require.Equal(t, []string{"https://app.example.com"}, c.Server.CORSAllowedOrigins)
	require.Equal(t, "edge", c.Rotation.KeyPrefix)
	require.Equal(t, "edge-cloudfront-keypair-id", c.Rotation.ActiveKeyParameter)
	require.NoError(t, c.ValidateRotation())
}

func TestLoad_AuthorizerRequiresPrefix(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Error(t, c.ValidateAuthorizer())
}

func TestLoad_RotatorLambdaEnv(t *testing.T) {
	t.Setenv("REGION", "eu-west-1")
	t.Setenv("SECRET_NAME", "edge-signing-key")
	t.Setenv("KEY_GROUP_ID", "KG1")
	t.Setenv("PREFIX", "edge")
	t.Setenv("SSM_PARAM", "edge-cloudfront-keypair-id")

	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.ValidateRotation())
	require.Equal(t, "eu-west-1", c.Rotation.Region)
	require.Equal(t, "us-east-1", c.Store.Region)
	require.Equal(t, "edge-signing-key", c.Rotation.SecretID)
	require.Equal(t, "KG1", c.Rotation.KeyGroupID)
	require.Equal(t, "edge", c.Rotation.KeyPrefix)
	require.Equal(t, "edge-cloudfront-keypair-id", c.Rotation.ActiveKeyParameter)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("SSM_PREFIX", "edge")
	t.Setenv("JWKS_STRICT_STATUS", "true")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := Load("")
	require.NoError(t, err)
	require.True(t, c.Identity.JWKSStrictStatus)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSAllowedOrigins)
	require.NoError(t, c.ValidateAuthorizer())

	err = c.ValidateRotation()
	require.Error(t, err)
}

func TestValidate_KeySelection(t *testing.T) {
	t.Setenv("SSM_PREFIX", "edge")
	t.Setenv("JWKS_KEY_SELECTION", "random")
	_, err := Load("")
	require.Error(t, err)
}
