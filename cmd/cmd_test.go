package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/signature"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "remotesign.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
tenant: from-file
client_id: file-client
signatures_number: 100
spaces:
  region: fra1
http:
  timeout: 30s
`), 0o600))

	configPath = file
	t.Cleanup(func() { configPath = "" })
	t.Setenv("CLIENT_ID", "env-client")
	t.Setenv("DO_SPACES_BUCKET", "signed")
	t.Setenv("HTTP_RETRY_COUNT", "5")
	t.Setenv("SIGN_CERTIFICATE_ID", "2024501530362")

	cfg, v, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Tenant)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, 100, cfg.SignaturesNumber)
	assert.Equal(t, "fra1", cfg.Spaces.Region)
	assert.Equal(t, "signed", cfg.Spaces.Bucket)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.RetryCount)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.RetryWait)
	assert.Equal(t, 8, cfg.Stamp.FontSize)
	assert.True(t, cfg.UploadEnabled)

	var certificateID, pin string
	c := &cobra.Command{Use: "test"}
	c.Flags().StringVar(&certificateID, "certificate-id", "", "")
	c.Flags().StringVar(&pin, "pin", "", "")
	require.NoError(t, c.Flags().Set("pin", "1234"))
	t.Setenv("SIGN_PIN", "9999")

	applySessionDefaults(c, v)
	assert.Equal(t, "2024501530362", certificateID)
	assert.Equal(t, "1234", pin)
}

func TestWrite(t *testing.T) {
	ok := signature.OK(&models.SignatureAuthorization{SAT: "sat"})
	failure := signature.Fail[*models.SignatureAuthorization](&signature.Failure{Kind: signature.KindUpstream, Message: "authorization failed: wrong otp"})

	var buf bytes.Buffer
	require.NoError(t, write(&buf, ok, outputJSON))
	assert.JSONEq(t, `{"Infocert-SAT":"sat"}`, buf.String())

	buf.Reset()
	require.NoError(t, write(&buf, failure, outputJSON))
	assert.JSONEq(t, `{"type":"error","kind":"upstream","content":"authorization failed: wrong otp"}`, buf.String())

	buf.Reset()
	require.NoError(t, write(&buf, failure, outputYAML))
	assert.Contains(t, buf.String(), "type: error\n")
	assert.Contains(t, buf.String(), "kind: upstream\n")
	assert.Contains(t, buf.String(), "wrong otp")

	buf.Reset()
	require.NoError(t, write(&buf, ok, outputYAML))
	assert.Equal(t, "Infocert-SAT: sat\n", buf.String())
}
