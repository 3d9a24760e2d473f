package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tenantrag/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServe_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.VectorStore.Provider = "memory"
	cfg.TenantStore.Provider = "sqlite"
	cfg.TenantStore.SQLitePath = filepath.Join(t.TempDir(), "tenants.db")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServe_BuildFailure(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Provider = "milvus"

	err := serve(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to initialize services")
}

func TestPrintConfig_RedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.TenantStore.PostgresDSN = config.Secret("postgres://user:hunter2@db/tenants")

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, cfg))
	assert.NotContains(t, buf.String(), "hunter2")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "Retrieval")
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TENANTRAG_SERVER_PORT=9191\n"), 0o600))
	t.Setenv("TENANTRAG_SERVER_PORT", "")
	require.NoError(t, os.Unsetenv("TENANTRAG_SERVER_PORT"))

	prevEnv, prevCfg := envFile, configPath
	envFile, configPath = path, ""
	t.Cleanup(func() {
		envFile, configPath = prevEnv, prevCfg
		_ = os.Unsetenv("TENANTRAG_SERVER_PORT")
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	prevEnv, prevCfg := envFile, configPath
	envFile, configPath = filepath.Join(t.TempDir(), "absent.env"), ""
	t.Cleanup(func() { envFile, configPath = prevEnv, prevCfg })

	_, err := loadConfig()
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}
