package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/config"
	"PriceLens/internal/dom"
	"PriceLens/internal/loop"
	"PriceLens/internal/pipeline"
)

const staticConfig = `
base_currency: EUR
target_currencies: [EUR, GBP]
mode: replace
rates:
  sources: [static]
  static:
    USD: 1.10
    GBP: 0.85
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", staticConfig)
	in := writeFile(t, dir, "in.html", `<html><body><p>Cool Product $19.99 — Shipping 5€</p></body></html>`)
	outPath := filepath.Join(dir, "out.html")

	_, err := run(t, "--config", cfgPath, "convert", in, "--out", outPath)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(got), "€18.17 • £15.45")
	assert.Contains(t, string(got), `data-pricelens-converted="true"`)
}

func TestConvertCommand_BadgeMode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", staticConfig)
	in := writeFile(t, dir, "in.html", `<p>5€</p>`)
	outPath := filepath.Join(dir, "out.html")

	_, err := run(t, "--config", cfgPath, "convert", in, "--mode", "badge", "--out", outPath)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(got), "pricelens-highlight")
	assert.Contains(t, string(got), "<p")
	assert.Contains(t, string(got), "5€</p>")
}

func TestConvertCommand_InvalidMode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", staticConfig)
	in := writeFile(t, dir, "in.html", `<p>5€</p>`)

	_, err := run(t, "--config", cfgPath, "convert", in, "--mode", "overlay")
	assert.Error(t, err)
}

func TestRatesCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", staticConfig)

	out, err := run(t, "--config", cfgPath, "rates", "--base", "usd")
	require.NoError(t, err)
	assert.Contains(t, out, "base USD | static")
	assert.Contains(t, out, "  USD  1.000000")
	assert.Contains(t, out, "  EUR  0.909091")
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "mode: overlay\n")

	_, err := run(t, "--config", cfgPath, "rates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
}

func TestRunLoop_StopsPipelineBeforeExit(t *testing.T) {
	c, err := config.Load(writeFile(t, t.TempDir(), "config.yaml", staticConfig))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	provider, rc, err := buildProvider(c)
	require.NoError(t, err)
	defer rc.Close()

	doc, err := dom.ParseString(`<html><body><p>$19.99</p></body></html>`)
	require.NoError(t, err)
	l := loop.New(0)
	p := pipeline.New(doc, l, provider, settingsFrom(c))
	shutdown := runLoop(l, p.Stop)

	ctx := context.Background()
	var startErr error
	require.NoError(t, l.Do(ctx, func() { startErr = p.Start(ctx) }))
	require.NoError(t, startErr)

	var watching bool
	require.NoError(t, l.Do(ctx, func() {
		nodes, err := doc.ParseFragment(`<p>5€</p>`)
		assert.NoError(t, err)
		doc.AppendChildren(doc.Body(), nodes)
		watching = p.Watching()
	}))
	assert.True(t, watching)

	shutdown()
	assert.False(t, p.Watching())
	assert.Equal(t, pipeline.Stats{Detected: 1, Rendered: 1}, p.Stats())
	assert.False(t, l.Post(func() {}), "loop must be stopped after shutdown")
}
