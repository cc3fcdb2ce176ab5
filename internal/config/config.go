package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"brewprint/internal/escpos"
	"brewprint/internal/printer"
	"brewprint/internal/tspl"
)

// Printer roles.
const (
	RoleLabel   = "label"
	RoleKitchen = "kitchen"
	RoleReceipt = "receipt"
)

// Roles lists every printer role in display order.
var Roles = []string{RoleLabel, RoleKitchen, RoleReceipt}

// Transport kinds.
const (
	TransportBluetooth = "bluetooth"
	TransportDirect    = "direct"
)

// Config is the printer layer configuration.
type Config struct {
	ShopName       string                   `yaml:"shop_name"`
	ClosingMessage string                   `yaml:"closing_message"`
	Currency       string                   `yaml:"currency"`
	CodePage       string                   `yaml:"code_page"`
	ReceiptColumns int                      `yaml:"receipt_columns"`
	StorePath      string                   `yaml:"store_path"`
	Label          LabelConfig              `yaml:"label"`
	Connection     ConnectionConfig         `yaml:"connection"`
	Printers       map[string]PrinterConfig `yaml:"printers"`
}

// LabelConfig describes the label stock.
type LabelConfig struct {
	Size    string  `yaml:"size"`
	Gap     float64 `yaml:"gap"`
	Density int     `yaml:"density"`
}

// ConnectionConfig is the retry policy shared by every role.
type ConnectionConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// PrinterConfig selects and tunes one role's transport.
type PrinterConfig struct {
	Transport  string              `yaml:"transport"`
	Endpoint   string              `yaml:"endpoint"`
	Keywords   []string            `yaml:"keywords"`
	Queue      string              `yaml:"queue"`
	BaudRate   int                 `yaml:"baud_rate"`
	MTU        int                 `yaml:"mtu"`
	ChunkDelay time.Duration       `yaml:"chunk_delay"`
	Candidates []printer.Candidate `yaml:"candidates"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ShopName:       "Coffee Shop",
		ClosingMessage: "Thank you!",
		Currency:       "$",
		CodePage:       "cp437",
		ReceiptColumns: escpos.DefaultColumns,
		StorePath:      defaultPath("devices.yaml"),
		Label: LabelConfig{
			Size:    tspl.Label40x30.Name,
			Gap:     2,
			Density: 8,
		},
		Connection: ConnectionConfig{
			MaxAttempts: printer.DefaultRetryPolicy.MaxAttempts,
			RetryDelay:  printer.DefaultRetryPolicy.Delay,
			ScanTimeout: printer.DefaultScanTimeout,
		},
		Printers: map[string]PrinterConfig{
			RoleLabel:   defaultPrinter(TransportBluetooth),
			RoleKitchen: defaultPrinter(TransportDirect),
			RoleReceipt: defaultPrinter(TransportDirect),
		},
	}
}

func defaultPrinter(transport string) PrinterConfig {
	p := PrinterConfig{Transport: transport}
	switch transport {
	case TransportBluetooth:
		p.ChunkDelay = printer.DefaultChunkDelay
	case TransportDirect:
		p.Keywords = append([]string(nil), printer.DefaultKeywords...)
		p.BaudRate = printer.DefaultBaudRate
	}
	return p
}

func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "brewprint", name)
}

// Path returns the config file location: BREWPRINT_CONFIG, else
// config.yaml in the user config directory.
func Path() string {
	return getenvDefault("BREWPRINT_CONFIG", defaultPath("config.yaml"))
}

// Load reads the config file over the defaults, then applies
// environment overrides. A missing file is only an error when
// BREWPRINT_CONFIG names it explicitly.
func Load() (Config, error) {
	cfg := Default()
	path := Path()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv("BREWPRINT_CONFIG") == "":
	default:
		return cfg, err
	}

	cfg.applyEnv()
	cfg.fillPrinters()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.ShopName = getenvDefault("BREWPRINT_SHOP_NAME", c.ShopName)
	c.StorePath = getenvDefault("BREWPRINT_STORE_PATH", c.StorePath)
	c.ReceiptColumns = getenvIntDefault("BREWPRINT_RECEIPT_COLUMNS", c.ReceiptColumns)
}

// fillPrinters gives every role a transport, keeping file overrides.
func (c *Config) fillPrinters() {
	defaults := Default().Printers
	if c.Printers == nil {
		c.Printers = defaults
		return
	}
	for _, role := range Roles {
		p, ok := c.Printers[role]
		if !ok {
			c.Printers[role] = defaults[role]
			continue
		}
		if p.Transport == "" {
			p.Transport = defaults[role].Transport
		}
		base := defaultPrinter(p.Transport)
		if len(p.Keywords) == 0 {
			p.Keywords = base.Keywords
		}
		if p.BaudRate == 0 {
			p.BaudRate = base.BaudRate
		}
		if p.ChunkDelay == 0 {
			p.ChunkDelay = base.ChunkDelay
		}
		c.Printers[role] = p
	}
}

// Validate rejects values the encoders or transports cannot honor.
func (c Config) Validate() error {
	var errs []error
	if c.ReceiptColumns < 16 {
		errs = append(errs, fmt.Errorf("receipt_columns %d: must be at least 16", c.ReceiptColumns))
	}
	if cp, err := escpos.LookupCodePage(c.CodePage); err != nil {
		errs = append(errs, err)
	} else if cp.Sanitize(c.Currency) != c.Currency {
		errs = append(errs, fmt.Errorf("currency %q: not printable in code page %s", c.Currency, cp.Name))
	}
	if _, ok := tspl.SizeByName(c.Label.Size); !ok {
		errs = append(errs, fmt.Errorf("unknown label size %q", c.Label.Size))
	}
	if c.Label.Density < 0 || c.Label.Density > 15 {
		errs = append(errs, fmt.Errorf("label density %d: must be 0-15", c.Label.Density))
	}
	if c.Connection.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts %d: must be at least 1", c.Connection.MaxAttempts))
	}
	for role, p := range c.Printers {
		switch p.Transport {
		case TransportBluetooth, TransportDirect:
		default:
			errs = append(errs, fmt.Errorf("printer %s: unknown transport %q", role, p.Transport))
		}
		if p.Endpoint != "" && p.Transport == TransportDirect {
			if _, err := printer.ParseEndpoint(p.Endpoint); err != nil {
				errs = append(errs, fmt.Errorf("printer %s: %w", role, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ReceiptOptions builds encoder options for receipts and kitchen tickets.
func (c Config) ReceiptOptions() escpos.Options {
	cp, err := escpos.LookupCodePage(c.CodePage)
	if err != nil {
		cp = escpos.DefaultCodePage
	}
	return escpos.Options{
		ShopName:       c.ShopName,
		Columns:        c.ReceiptColumns,
		CurrencySymbol: c.Currency,
		CodePage:       cp,
		ClosingMessage: c.ClosingMessage,
	}
}

// Stock returns the label roll description.
func (c Config) Stock() tspl.Stock {
	size, ok := tspl.SizeByName(c.Label.Size)
	if !ok {
		size = tspl.DefaultStock.Size
	}
	return tspl.Stock{Size: size, Gap: c.Label.Gap, Density: c.Label.Density}
}

// RetryPolicy returns the connection retry policy.
func (c Config) RetryPolicy() printer.RetryPolicy {
	return printer.RetryPolicy{MaxAttempts: c.Connection.MaxAttempts, Delay: c.Connection.RetryDelay}
}

// GATTConfig returns the wireless settings for role.
func (c Config) GATTConfig(role string) printer.GATTConfig {
	p := c.Printers[role]
	return printer.GATTConfig{
		Keywords:    p.Keywords,
		Candidates:  p.Candidates,
		MTU:         p.MTU,
		ChunkDelay:  p.ChunkDelay,
		ScanTimeout: c.Connection.ScanTimeout,
	}
}

// DirectConfig returns the cable and spooler settings for role.
func (c Config) DirectConfig(role string) printer.DirectConfig {
	p := c.Printers[role]
	return printer.DirectConfig{
		Override: p.Endpoint,
		Keywords: p.Keywords,
		BaudRate: p.BaudRate,
		Queue:    p.Queue,
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
