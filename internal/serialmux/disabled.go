package serialmux

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// ErrSerialDisabled is returned by commands sent while linecalc runs without
// a sensor board.
var ErrSerialDisabled = errors.New("serial port disabled")

// DisabledSerialMux stands in for the board under -disable-serial so the
// monitor can run on its own. It never produces a line; its subscribers only
// see their channel close on Unsubscribe or Close.
type DisabledSerialMux struct {
	subs *subscriberSet
}

var _ SerialMuxInterface = (*DisabledSerialMux)(nil)

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subs: newSubscriberSet()}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.add() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.subs.remove(id) }

func (d *DisabledSerialMux) SendCommand(string) error { return ErrSerialDisabled }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.subs.closeAll()
	return nil
}

// Initialize has nothing to configure.
func (d *DisabledSerialMux) Initialize() error { return nil }

func (d *DisabledSerialMux) Stats() MuxStats { return d.subs.stats() }

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"serial":      "disabled",
			"subscribers": d.subs.count(),
		})
	})
}
