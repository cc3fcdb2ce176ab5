package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"brewprint/internal/config"
	"brewprint/internal/manager"
	"brewprint/internal/metrics"
	"brewprint/internal/order"
	"brewprint/internal/printer"
)

const (
	AppVersion = "0.3.0"
	AppName    = "Brewprint"

	printTimeout = 30 * time.Second
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	cfg     config.Config
	logger  *zap.Logger
	manager *manager.Manager

	previewImg  *canvas.Image
	statusLabel *widget.Label
	roleStatus  map[manager.Role]*widget.Label
	connectBtns map[manager.Role]*widget.Button
	itemEntry   *widget.Entry
	refEntry    *widget.Entry
}

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.String("path", config.Path()), zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	metrics.Init(reg)
	if addr := os.Getenv("BREWPRINT_METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, reg, logger)
	}

	a := app.New()
	w := a.NewWindow(fmt.Sprintf("%s v%s", AppName, AppVersion))
	w.Resize(fyne.NewSize(720, 480))

	bp := &App{
		fyneApp:     a,
		window:      w,
		cfg:         cfg,
		logger:      logger,
		roleStatus:  make(map[manager.Role]*widget.Label),
		connectBtns: make(map[manager.Role]*widget.Button),
	}
	bp.manager = manager.New(cfg, printer.NewFileStore(cfg.StorePath),
		manager.WithLogger(logger),
		manager.WithChooser(bp.chooseDevice),
		manager.WithStatus(bp.setRoleStatus),
	)

	w.SetMainMenu(bp.buildMenu())
	w.SetContent(bp.buildUI())
	w.SetOnClosed(func() {
		if err := bp.manager.Close(); err != nil {
			logger.Warn("close printers", zap.Error(err))
		}
	})
	w.ShowAndRun()
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("BREWPRINT_DEBUG") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func (a *App) buildMenu() *fyne.MainMenu {
	aboutItem := fyne.NewMenuItem("About", func() {
		a.showAboutDialog()
	})
	return fyne.NewMainMenu(fyne.NewMenu("Help", aboutItem))
}

func (a *App) showAboutDialog() {
	bt := "not available"
	if a.manager.IsBluetoothCapable() {
		bt = "available"
	}
	content := container.NewVBox(
		widget.NewLabelWithStyle(AppName, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel(fmt.Sprintf("Version %s", AppVersion)),
		widget.NewSeparator(),
		widget.NewLabel("Label, kitchen and receipt printers for "+a.cfg.ShopName+"."),
		widget.NewLabel("Bluetooth: "+bt),
		widget.NewLabel("Config: "+config.Path()),
	)
	dialog.ShowCustom("About", "Close", content, a.window)
}

func (a *App) buildUI() fyne.CanvasObject {
	a.statusLabel = widget.NewLabel("Ready")
	if !a.manager.IsBluetoothCapable() {
		a.statusLabel.SetText("Bluetooth unavailable; only cable printers can be used")
	}

	rows := container.NewVBox()
	for _, role := range manager.Roles {
		rows.Add(a.buildRoleRow(role))
		rows.Add(widget.NewSeparator())
	}

	a.refEntry = widget.NewEntry()
	a.refEntry.SetText("42")
	a.refEntry.OnChanged = func(string) { a.updatePreview() }

	a.itemEntry = widget.NewEntry()
	a.itemEntry.SetText("Hot Latte")
	a.itemEntry.OnChanged = func(string) { a.updatePreview() }

	form := widget.NewForm(
		widget.NewFormItem("Order", a.refEntry),
		widget.NewFormItem("Item", a.itemEntry),
	)

	a.previewImg = canvas.NewImageFromImage(nil)
	a.previewImg.SetMinSize(fyne.NewSize(240, 180))
	a.previewImg.FillMode = canvas.ImageFillContain
	a.updatePreview()

	leftPanel := container.NewVBox(
		widget.NewLabelWithStyle("Printers", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		rows,
	)
	rightPanel := container.NewBorder(
		form,
		nil, nil, nil,
		container.NewCenter(a.previewImg),
	)

	content := container.NewHSplit(leftPanel, rightPanel)
	content.SetOffset(0.5)

	return container.NewBorder(
		nil,
		container.NewHBox(a.statusLabel),
		nil, nil,
		content,
	)
}

func (a *App) buildRoleRow(role manager.Role) fyne.CanvasObject {
	state := widget.NewLabel(a.manager.State(role).String())
	a.roleStatus[role] = state

	pairBtn := widget.NewButton("Pair", func() {
		a.runRole(role, "Pairing", func(ctx context.Context) (string, error) {
			m, err := a.manager.Pair(ctx, role)
			return string(m), err
		})
	})

	connectBtn := widget.NewButton("Connect", nil)
	connectBtn.OnTapped = func() {
		if a.manager.State(role).Kind == printer.StateConnected {
			if err := a.manager.Disconnect(role); err != nil {
				dialog.ShowError(err, a.window)
			}
			a.refreshRole(role)
			return
		}
		a.runRole(role, "Connecting", func(ctx context.Context) (string, error) {
			m, err := a.manager.Connect(ctx, role)
			return string(m), err
		})
	}
	a.connectBtns[role] = connectBtn

	testBtn := widget.NewButton("Test print", func() {
		a.runRole(role, "Printing", func(ctx context.Context) (string, error) {
			res, err := a.manager.PrintJob(ctx, role, a.sampleJob())
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bytes via %s", res.Bytes, res.Delivery), nil
		})
	})
	testBtn.Importance = widget.HighImportance

	return container.NewVBox(
		widget.NewLabelWithStyle(roleTitle(role), fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		state,
		container.NewHBox(pairBtn, connectBtn, testBtn),
	)
}

func roleTitle(role manager.Role) string {
	switch role {
	case manager.RoleLabel:
		return "Cup labels"
	case manager.RoleKitchen:
		return "Kitchen tickets"
	case manager.RoleReceipt:
		return "Receipts"
	}
	return string(role)
}

// runRole runs op off the UI goroutine and reports the outcome.
func (a *App) runRole(role manager.Role, verb string, op func(ctx context.Context) (string, error)) {
	a.statusLabel.SetText(fmt.Sprintf("%s %s printer...", verb, role))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), printTimeout)
		defer cancel()

		detail, err := op(ctx)
		a.refreshRole(role)
		if err != nil {
			a.statusLabel.SetText(fmt.Sprintf("%s %s printer failed: %v", verb, role, err))
			dialog.ShowError(err, a.window)
			return
		}
		a.statusLabel.SetText(fmt.Sprintf("%s %s printer done (%s)", verb, role, detail))
	}()
}

func (a *App) refreshRole(role manager.Role) {
	state := a.manager.State(role)
	a.roleStatus[role].SetText(state.String())
	if state.Kind == printer.StateConnected {
		a.connectBtns[role].SetText("Disconnect")
	} else {
		a.connectBtns[role].SetText("Connect")
	}
}

func (a *App) setRoleStatus(role manager.Role, status string) {
	if l, ok := a.roleStatus[role]; ok {
		l.SetText(status)
	}
}

// chooseDevice shows the discovered printers and blocks until the
// user picks one or dismisses the dialog.
func (a *App) chooseDevice(ctx context.Context, found []printer.DeviceHandle) (printer.DeviceHandle, error) {
	options := make([]string, len(found))
	for i, h := range found {
		options[i] = h.String()
	}

	picked := make(chan printer.DeviceHandle, 1)
	sel := widget.NewSelect(options, nil)
	if len(options) > 0 {
		sel.SetSelectedIndex(0)
	}
	dialog.ShowCustomConfirm("Select printer", "Pair", "Cancel", sel, func(ok bool) {
		if !ok || sel.SelectedIndex() < 0 {
			picked <- printer.DeviceHandle{}
			return
		}
		picked <- found[sel.SelectedIndex()]
	}, a.window)

	select {
	case h := <-picked:
		return h, nil
	case <-ctx.Done():
		return printer.DeviceHandle{}, ctx.Err()
	}
}

func (a *App) sampleJob() order.PrintJob {
	name := a.itemEntry.Text
	if name == "" {
		name = "Hot Latte"
	}
	return order.PrintJob{
		OrderReference: a.refEntry.Text,
		Lines: []order.LineItem{
			order.NewLineItem(name, 1, decimal.RequireFromString("4.50")),
			order.NewLineItem("Croissant", 2, decimal.RequireFromString("2.25")),
		},
		Note:               "Test print",
		PaymentMethodLabel: "Cash",
		CreatedAt:          time.Now(),
	}
}

func (a *App) updatePreview() {
	img, _, err := a.manager.PreviewLabel(a.refEntry.Text, a.itemEntry.Text)
	if err != nil {
		a.logger.Debug("label preview", zap.Error(err))
		return
	}
	a.previewImg.Image = img
	a.previewImg.Refresh()
}
