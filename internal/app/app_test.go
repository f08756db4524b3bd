package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couponwatch/internal/config"
	logx "couponwatch/pkg/logx"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Deals Daily</title>
<item><title>クーポン配布中</title><link>https://shop.example/a</link>
<description>今だけ コード: SAVE2026X で10%OFF</description></item>
<item><title>新製品発表</title><link>https://shop.example/b</link>
<description>新しいモデルが登場</description></item>
</channel></rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, feedURL, keyword string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`notify:
  sink: stdout
  min_interval: 0s
feeds:
  sources:
    - url: %s
filter:
  keywords: [%s]
  freshness_window: 0s
extract:
  deep_scan:
    enabled: false
dedupe:
  driver: file
  path: %s
`, feedURL, keyword, filepath.Join(dir, "seen.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestApp(t *testing.T, path string, dryRun bool, out *bytes.Buffer) *App {
	t.Helper()
	a, err := New(path, Options{DryRun: dryRun, Stdout: out, Logger: logx.Nop()})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestRunOnceNotifiesOnce(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	path := writeConfig(t, t.TempDir(), srv.URL+"/rss", "クーポン")
	var out bytes.Buffer
	a := newTestApp(t, path, false, &out)

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SourcesOK)
	assert.Equal(t, 1, rep.Notified)
	assert.Equal(t, 1, rep.SkippedKeyword)
	assert.Contains(t, out.String(), "SAVE2026X")
	assert.Contains(t, out.String(), "**Deals Daily** で情報を検知！")
	require.Len(t, a.History(), 1)
	assert.True(t, a.History()[0].OK())

	out.Reset()
	rep, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Notified)
	assert.Equal(t, 1, rep.SkippedSeen)
	assert.Empty(t, out.String())

	// a fresh process sees the persisted links
	b := newTestApp(t, path, false, &out)
	rep, err = b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Notified)
}

func TestDryRunDoesNotPersist(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, srv.URL+"/rss", "クーポン")

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		a := newTestApp(t, path, true, &out)
		rep, err := a.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Notified, "run %d", i)
		assert.Contains(t, out.String(), "SAVE2026X")
	}
}

func TestApplySwitchesSettings(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, srv.URL+"/rss", "クーポン")
	var out bytes.Buffer
	a := newTestApp(t, path, false, &out)

	cfg, err := config.NewConfigManager(writeConfig(t, dir, srv.URL+"/rss", "存在しない語")).Parse()
	require.NoError(t, err)
	require.NoError(t, a.Apply(cfg))
	assert.Equal(t, []string{"存在しない語"}, a.Settings().Filter.Keywords)

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Admitted)
	assert.Equal(t, 2, rep.SkippedKeyword)

	bad := *cfg
	bad.Notify.Sink = "pager"
	err = a.Apply(&bad)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, []string{"存在しない語"}, a.Settings().Filter.Keywords)
}

func TestNewConfigError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notify:\n  sink: pager\n"), 0o600))
	_, err := New(path, Options{Logger: logx.Nop()})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestNewEnvOnlyWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvWebhookURL, "")
	t.Setenv(config.EnvRedisURL, "")
	t.Setenv(config.EnvDiscordWebhook, "https://discord.example/api/webhooks/1/env")

	a, err := New(config.DefaultConfigPath, Options{DryRun: true, Stdout: &bytes.Buffer{}, Logger: logx.Nop()})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	s := a.Settings()
	assert.Equal(t, config.SinkDiscord, s.Notify.Sink)
	assert.Equal(t, "https://discord.example/api/webhooks/1/env", s.Notify.Discord.WebhookURL)
	assert.Len(t, s.Feeds.Sources, len(config.DefaultSources))
	assert.Equal(t, config.DefaultKeywords, s.Filter.Keywords)
}

func TestNewMissingDefaultConfigNeedsTarget(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvWebhookURL, "")
	t.Setenv(config.EnvDiscordWebhook, "")

	_, err := New(config.DefaultConfigPath, Options{DryRun: true, Logger: logx.Nop()})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, config.ErrMissingTarget)
}

func TestNewMissingExplicitConfig(t *testing.T) {
	t.Setenv(config.EnvDiscordWebhook, "https://discord.example/api/webhooks/1/env")

	_, err := New(filepath.Join(t.TempDir(), "custom.yaml"), Options{DryRun: true, Logger: logx.Nop()})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProbe(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`notify: {sink: stdout}
feeds:
  sources:
    - url: %s/rss
    - url: %s/missing
dedupe: {path: %s}
`, srv.URL, srv.URL, filepath.Join(dir, "seen.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	a := newTestApp(t, path, true, &bytes.Buffer{})

	res := a.Probe(context.Background())
	require.Len(t, res, 2)
	assert.True(t, res[0].OK())
	assert.Equal(t, "Deals Daily", res[0].Title)
	assert.Equal(t, 2, res[0].Entries)
	assert.False(t, res[1].OK())
	assert.Equal(t, srv.URL+"/missing", res[1].Source.URL)
}
