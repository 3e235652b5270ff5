package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/testkit"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestServicesAndGet(t *testing.T) {
	fake := testkit.NewFakeServer(t, testkit.NewStore())
	fake.SetServices(fake.Instance("cs-1"))
	fake.Publish("application", map[string]string{"b": "2", "a": "1"})

	out, err := run(t, context.Background(), "services", "--meta", fake.URL, "--app-id", "demo")
	require.NoError(t, err)
	assert.Equal(t, "cs-1\t"+fake.URL+"/\n", out)

	out, err = run(t, context.Background(), "get", "application", "--meta", fake.URL, "--app-id", "demo")
	require.NoError(t, err)
	assert.Equal(t, "# application releaseKey=application-release-1\na=1\nb=2\n", out)
}

func TestGet_ConfigFile(t *testing.T) {
	fake := testkit.NewFakeServer(t, testkit.NewStore())
	fake.SetServices(fake.Instance("cs-1"))
	fake.Publish("db", map[string]string{"dsn": "mysql://"})

	file := filepath.Join(t.TempDir(), "beacon.yaml")
	content := "beacon:\n  app_id: demo\n  meta_address: " + fake.URL + "\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	out, err := run(t, context.Background(), "get", "db", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "dsn=mysql://")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	store := testkit.NewStore()
	store.LongPoll = 50 * time.Millisecond
	fake := testkit.NewFakeServer(t, store)
	fake.SetServices(fake.Instance("cs-1"))
	fake.Publish("application", map[string]string{"k": "v"})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	out, err := run(t, ctx, "watch", "application", "--meta", fake.URL, "--app-id", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "# application notificationId=1\n")
	assert.Contains(t, out, "k=v\n")
}

func TestGet_MissingAppID(t *testing.T) {
	_, err := run(t, context.Background(), "get", "application", "--meta", "http://127.0.0.1:1")
	assert.Error(t, err)
}
