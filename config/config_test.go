package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() Config {
	c := Default()
	c.ClientID = "client"
	c.ClientSecret = "secret"
	c.AuthorizationAPI = "https://idp.example.com/auth"
	c.SignatureAPI = "https://sign.example.com/api"
	c.Tenant = "acme"
	c.Spaces = Spaces{
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "fra1",
		Bucket:    "signed",
		Endpoint:  "https://fra1.digitaloceanspaces.com",
	}
	return c
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 1, c.SignaturesNumber)
	assert.True(t, c.UploadEnabled)
	assert.Equal(t, 8, c.Stamp.FontSize)
	assert.Equal(t, 2, c.HTTP.RetryCount)
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())

	c := valid()
	c.ClientSecret = ""
	c.Tenant = ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret is required")
	assert.Contains(t, err.Error(), "tenant is required")

	c = valid()
	c.SignaturesNumber = 0
	assert.ErrorContains(t, c.Validate(), "signatures_number")
}

func TestValidateStorageOnlyWhenUploading(t *testing.T) {
	c := valid()
	c.Spaces = Spaces{}
	assert.ErrorContains(t, c.Validate(), "spaces.bucket is required")

	c.UploadEnabled = false
	assert.NoError(t, c.Validate())
}
