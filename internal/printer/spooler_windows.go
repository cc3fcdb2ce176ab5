//go:build windows

package printer

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const printersKey = `SYSTEM\CurrentControlSet\Control\Print\Printers`

var (
	winspool = windows.NewLazySystemDLL("winspool.drv")

	procOpenPrinter      = winspool.NewProc("OpenPrinterW")
	procClosePrinter     = winspool.NewProc("ClosePrinter")
	procStartDocPrinter  = winspool.NewProc("StartDocPrinterW")
	procEndDocPrinter    = winspool.NewProc("EndDocPrinter")
	procStartPagePrinter = winspool.NewProc("StartPagePrinter")
	procEndPagePrinter   = winspool.NewProc("EndPagePrinter")
	procWritePrinter     = winspool.NewProc("WritePrinter")
)

// docInfo1 mirrors DOC_INFO_1.
type docInfo1 struct {
	DocName    *uint16
	OutputFile *uint16
	Datatype   *uint16
}

// winSpooler writes RAW documents through winspool.
type winSpooler struct{}

// NewSpooler returns the host print spooler.
func NewSpooler() Spooler {
	return winSpooler{}
}

// Queues lists installed printer queues.
func (winSpooler) Queues(context.Context) ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, printersKey, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer key.Close()
	return key.ReadSubKeyNames(-1)
}

// Submit sends data as one RAW document, so the driver does not
// rasterize the command stream.
func (winSpooler) Submit(_ context.Context, queue string, data []byte) error {
	if err := winspool.Load(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err)
	}
	if len(data) == 0 {
		return nil
	}

	name, err := windows.UTF16PtrFromString(queue)
	if err != nil {
		return err
	}
	var h windows.Handle
	if r, _, err := procOpenPrinter.Call(uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(&h)), 0); r == 0 {
		return fmt.Errorf("%w: open printer %s: %v", ErrNoDeviceFound, queue, err)
	}
	defer procClosePrinter.Call(uintptr(h))

	docName, _ := windows.UTF16PtrFromString("brewprint")
	dataType, _ := windows.UTF16PtrFromString("RAW")
	doc := docInfo1{DocName: docName, Datatype: dataType}
	if r, _, err := procStartDocPrinter.Call(uintptr(h), 1, uintptr(unsafe.Pointer(&doc))); r == 0 {
		return fmt.Errorf("start document on %s: %v", queue, err)
	}
	defer procEndDocPrinter.Call(uintptr(h))

	if r, _, err := procStartPagePrinter.Call(uintptr(h)); r == 0 {
		return fmt.Errorf("start page on %s: %v", queue, err)
	}
	defer procEndPagePrinter.Call(uintptr(h))

	var written uint32
	r, _, err := procWritePrinter.Call(uintptr(h), uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)), uintptr(unsafe.Pointer(&written)))
	if r == 0 {
		return fmt.Errorf("%w: write to %s: %v", ErrTransportInterrupted, queue, err)
	}
	if int(written) != len(data) {
		return fmt.Errorf("%w: %s took %d of %d bytes", ErrTransportInterrupted, queue, written, len(data))
	}
	return nil
}
