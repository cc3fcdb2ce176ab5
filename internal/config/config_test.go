package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewprint/internal/printer"
	"brewprint/internal/tspl"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	t.Setenv("BREWPRINT_CONFIG", path)
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 32, cfg.ReceiptColumns)
	assert.Equal(t, TransportBluetooth, cfg.Printers[RoleLabel].Transport)
	assert.Equal(t, printer.DefaultRetryPolicy, cfg.RetryPolicy())
	assert.Equal(t, tspl.Label40x30, cfg.Stock().Size)
}

func TestLoadFileOverDefaults(t *testing.T) {
	writeConfig(t, `
shop_name: Bean There
receipt_columns: 48
code_page: cp858
label:
  size: 50x30mm
  gap: 3
  density: 10
connection:
  retry_delay: 250ms
printers:
  receipt:
    endpoint: usb:0416:5011
    queue: POS80
  label:
    mtu: 180
    keywords: [PT-210]
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Bean There", cfg.ShopName)
	assert.Equal(t, 48, cfg.ReceiptColumns)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.RetryDelay)
	assert.Equal(t, 3, cfg.Connection.MaxAttempts, "unset keys keep defaults")

	receipt := cfg.Printers[RoleReceipt]
	assert.Equal(t, TransportDirect, receipt.Transport)
	assert.Equal(t, printer.DefaultKeywords, receipt.Keywords)
	assert.Equal(t, printer.DefaultBaudRate, receipt.BaudRate)

	dc := cfg.DirectConfig(RoleReceipt)
	assert.Equal(t, "usb:0416:5011", dc.Override)
	assert.Equal(t, "POS80", dc.Queue)

	gc := cfg.GATTConfig(RoleLabel)
	assert.Equal(t, 180, gc.MTU)
	assert.Equal(t, []string{"PT-210"}, gc.Keywords)
	assert.Equal(t, printer.DefaultChunkDelay, gc.ChunkDelay)

	_, ok := cfg.Printers[RoleKitchen]
	assert.True(t, ok)

	opts := cfg.ReceiptOptions()
	assert.Equal(t, "cp858", opts.CodePage.Name)
	assert.Equal(t, tspl.Label50x30, cfg.Stock().Size)
}

func TestLoadEnvOverrides(t *testing.T) {
	writeConfig(t, "shop_name: From File\n")
	t.Setenv("BREWPRINT_SHOP_NAME", "From Env")
	t.Setenv("BREWPRINT_RECEIPT_COLUMNS", "42")
	t.Setenv("BREWPRINT_STORE_PATH", "/var/lib/brewprint/devices.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "From Env", cfg.ShopName)
	assert.Equal(t, 42, cfg.ReceiptColumns)
	assert.Equal(t, "/var/lib/brewprint/devices.yaml", cfg.StorePath)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Setenv("BREWPRINT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.ReceiptColumns = 12
	cfg.CodePage = "utf8"
	cfg.Label.Size = "100x150mm"
	cfg.Printers[RoleKitchen] = PrinterConfig{Transport: "carrier-pigeon"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"receipt_columns", "utf8", "100x150mm", "carrier-pigeon"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsUnprintableCurrency(t *testing.T) {
	cfg := Default()
	cfg.Currency = "€"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency")

	cfg.CodePage = "cp858"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "€", cfg.ReceiptOptions().CurrencySymbol)
}
