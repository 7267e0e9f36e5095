package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rsharan/slotflow/pkg/slotflow/extcall"
)

// Backends groups the external systems the intake flow talks to.
// Directory and Availability are enrichment steps: leaving either nil
// omits its graph node. Booking is required; New refuses to assemble
// without it.
type Backends struct {
	// Directory resolves a phone number to a known customer id.
	Directory extcall.Backend

	// Availability picks a workshop slot for the requested date.
	Availability extcall.Backend

	// Booking creates the appointment once the caller confirms.
	Booking extcall.Backend
}

// StubBackends returns in-memory implementations for demos and tests.
// The directory recognises every number, availability always offers
// the morning slot, and bookings land in an in-memory ledger.
func StubBackends() (Backends, *Ledger) {
	ledger := &Ledger{}
	return Backends{
		Directory: extcall.BackendFunc{
			BackendName: "directory",
			Fn: func(_ context.Context, bundle map[string]any) (map[string]any, error) {
				phone, _ := bundle[FieldPhone].(string)
				if phone == "" {
					return map[string]any{}, nil
				}
				// deterministic id so repeat callers match up
				id := "CUST-" + phone[len(phone)-4:]
				return map[string]any{FieldCustID: id}, nil
			},
		},
		Availability: extcall.BackendFunc{
			BackendName: "availability",
			Fn: func(_ context.Context, bundle map[string]any) (map[string]any, error) {
				if _, ok := bundle[FieldDate]; !ok {
					return map[string]any{}, nil
				}
				return map[string]any{FieldSlot: "10:00"}, nil
			},
		},
		Booking: extcall.BackendFunc{
			BackendName: "booking",
			Fn: func(_ context.Context, bundle map[string]any) (map[string]any, error) {
				id := "BK-" + strings.ToUpper(uuid.New().String()[:8])
				ledger.add(Entry{
					ID:      id,
					Phone:   fmt.Sprint(bundle[FieldPhone]),
					Service: fmt.Sprint(bundle[FieldService]),
					Date:    fmt.Sprint(bundle[FieldDate]),
				})
				return map[string]any{FieldBooking: id}, nil
			},
		},
	}, ledger
}

// Entry is one created booking.
type Entry struct {
	ID      string
	Phone   string
	Service string
	Date    string
}

// Ledger records bookings created by the stub backend.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

func (l *Ledger) add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the created bookings.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
