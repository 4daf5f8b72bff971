package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Server.Dir)
	assert.Equal(t, 1323, cfg.Server.Port)
	assert.Equal(t, "mosdns.log", cfg.Server.LogFile)
	assert.Equal(t, "mosdns", cfg.Server.Unit)
	assert.True(t, cfg.Server.StrictLog)
	assert.Equal(t, "http://localhost:1323", cfg.Client.URL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 10, cfg.Client.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  dir: /etc/mosdns
  port: 8080
  unit: mosdns-cn
client:
  url: http://router:8080
  refresh: 30s
  page_size: 20
log:
  format: json
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/etc/mosdns", cfg.Server.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mosdns-cn", cfg.Server.Unit)
	assert.Equal(t, "http://router:8080", cfg.Client.URL)
	assert.Equal(t, 30*time.Second, cfg.Client.Refresh)
	assert.Equal(t, 20, cfg.Client.PageSize)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep defaults
	assert.Equal(t, "systemctl", cfg.Server.Systemctl)
}

func TestLoadInvalid(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 70000)
	v.Set("client.url", "localhost")
	v.Set("client.page_size", 7)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "client.url")
	assert.Contains(t, err.Error(), "client.page_size")
}
