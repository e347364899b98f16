package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 1, cfg.Payments.ApprovalsRequired)
	assert.Contains(t, cfg.Payments.RequiredDocuments, "f30")
	assert.Equal(t, "obralink.notifications", cfg.Notifications.NATS.SubjectPrefix)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
payments:
  approvals_required: 2
notifications:
  webhooks:
    - url: https://hooks.example.com/obra
      events: [rfi.responded]
      enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Payments.ApprovalsRequired)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	require.Len(t, cfg.Notifications.Webhooks, 1)
	assert.False(t, cfg.Notifications.Webhooks[0].Active())
	assert.Equal(t, 5, int(cfg.Notifications.Webhooks[0].Timeout().Seconds()))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"quorum":   "payments:\n  approvals_required: 0\n",
		"dup doc":  "payments:\n  required_documents: [f30, f30]\n",
		"bad hook": "notifications:\n  webhooks:\n    - url: ftp://x\n",
		"base":     "server:\n  base_path: v1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Payments.ApprovalsRequired)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "obralink.yml"), []byte("payments:\n  approvals_required: 3\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Payments.ApprovalsRequired)
}
