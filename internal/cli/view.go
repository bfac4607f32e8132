package cli

import (
	"fmt"
	"io"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/vault"
)

// RequestView is the printed outcome of one vault request.
type RequestView struct {
	RequestID    string      `json:"request_id"`
	InvocationID string      `json:"invocation_id"`
	Seq          int64       `json:"seq"`
	Timestamp    int64       `json:"timestamp"`
	Operation    string      `json:"operation"`
	Caller       string      `json:"caller"`
	OutputCase   string      `json:"output_case"`
	Result       ir.IRObject `json:"result"`
	Events       []EventView `json:"events"`
}

// EventView is one journaled event.
type EventView struct {
	Seq     int64       `json:"seq"`
	Name    string      `json:"name"`
	Payload ir.IRObject `json:"payload"`
}

func newRequestView(res engine.Result) RequestView {
	v := RequestView{
		RequestID:    res.Invocation.RequestID,
		InvocationID: res.Invocation.ID,
		Seq:          res.Invocation.Seq,
		Timestamp:    res.Invocation.Timestamp,
		Operation:    res.Invocation.Operation,
		Caller:       res.Invocation.Caller.String(),
		OutputCase:   res.Completion.OutputCase,
		Result:       res.Completion.Result,
		Events:       make([]EventView, 0, len(res.Events)),
	}
	for _, ev := range res.Events {
		v.Events = append(v.Events, newEventView(ev))
	}
	return v
}

func newEventView(ev ir.EventRecord) EventView {
	return EventView{Seq: ev.Seq, Name: ev.Name, Payload: ev.Payload}
}

func (v RequestView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s [seq %d] %s\n", v.Operation, v.Seq, v.OutputCase)
	writeObject(w, "  ", v.Result)
	for _, ev := range v.Events {
		fmt.Fprintf(w, "  event %s\n", ev.Name)
	}
}

// writeObject prints one key per line in sorted order.
func writeObject(w io.Writer, indent string, obj ir.IRObject) {
	for _, k := range obj.SortedKeys() {
		fmt.Fprintf(w, "%s%s: %s\n", indent, k, textValue(obj[k]))
	}
}

func textValue(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return fmt.Sprintf("%d", int64(val))
	case ir.IRBool:
		return fmt.Sprintf("%t", bool(val))
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// VaultView is the printed vault snapshot.
type VaultView struct {
	Address            string `json:"address"`
	Authority          string `json:"authority"`
	Bump               uint8  `json:"bump"`
	FeeBasisPoints     uint16 `json:"fee_basis_points"`
	BurnPercentageBps  uint16 `json:"burn_percentage_bps"`
	DelaySeconds       int64  `json:"delay_seconds"`
	TotalAccrued       uint64 `json:"total_accrued"`
	Lamports           uint64 `json:"lamports"`
	Surplus            uint64 `json:"surplus"`
	PendingBurnBps     *int64 `json:"pending_burn_bps,omitempty"`
	PendingDelay       *int64 `json:"pending_delay_seconds,omitempty"`
	PendingReleaseTime *int64 `json:"pending_release_time,omitempty"`
}

func newVaultView(s vault.Snapshot) VaultView {
	rec := s.Record
	v := VaultView{
		Address:           s.Address.String(),
		Authority:         rec.Authority.String(),
		Bump:              rec.Bump,
		FeeBasisPoints:    rec.FeeBasisPoints,
		BurnPercentageBps: rec.BurnPercentageBps,
		DelaySeconds:      rec.DelaySeconds,
		TotalAccrued:      rec.TotalAccrued,
		Lamports:          s.Lamports,
		Surplus:           s.Surplus(),
	}
	if bps, ok := rec.PendingBurnPercentageBps.Get(); ok {
		n := int64(bps)
		v.PendingBurnBps = &n
	}
	if d, ok := rec.PendingDelaySeconds.Get(); ok {
		v.PendingDelay = &d
	}
	if rec.HasPending() {
		at := rec.PendingReleaseTime
		v.PendingReleaseTime = &at
	}
	return v
}

func (v VaultView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Vault %s (bump %d)\n", v.Address, v.Bump)
	fmt.Fprintf(w, "  authority:     %s\n", v.Authority)
	fmt.Fprintf(w, "  fee rate:      %d bps\n", v.FeeBasisPoints)
	fmt.Fprintf(w, "  burn share:    %d bps\n", v.BurnPercentageBps)
	fmt.Fprintf(w, "  timelock:      %ds\n", v.DelaySeconds)
	fmt.Fprintf(w, "  total accrued: %d lamports (%s SOL)\n", v.TotalAccrued, FormatSOL(v.TotalAccrued))
	fmt.Fprintf(w, "  balance:       %d lamports (%s SOL)\n", v.Lamports, FormatSOL(v.Lamports))
	if v.Surplus > 0 {
		fmt.Fprintf(w, "  surplus:       %d lamports\n", v.Surplus)
	}
	if v.PendingReleaseTime == nil {
		fmt.Fprintln(w, "  pending:       none")
		return
	}
	fmt.Fprintf(w, "  pending:       releases at %d\n", *v.PendingReleaseTime)
	if v.PendingBurnBps != nil {
		fmt.Fprintf(w, "    burn share:  %d bps\n", *v.PendingBurnBps)
	}
	if v.PendingDelay != nil {
		fmt.Fprintf(w, "    timelock:    %ds\n", *v.PendingDelay)
	}
}

// BalanceView is one account balance.
type BalanceView struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

func (v BalanceView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s: %d lamports (%s SOL)\n", v.Address, v.Lamports, v.SOL)
}

// AddressView is the derived vault address.
type AddressView struct {
	Address     string `json:"address"`
	Bump        uint8  `json:"bump"`
	Incinerator string `json:"incinerator"`
}

func (v AddressView) writeText(w io.Writer) {
	fmt.Fprintf(w, "vault:       %s (bump %d)\n", v.Address, v.Bump)
	fmt.Fprintf(w, "incinerator: %s\n", v.Incinerator)
}

// EventsView is a page of the event log.
type EventsView struct {
	Events []EventView `json:"events"`
}

func (v EventsView) writeText(w io.Writer) {
	if len(v.Events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, ev := range v.Events {
		fmt.Fprintf(w, "[%d] %s %s\n", ev.Seq, ev.Name, textValue(ev.Payload))
	}
}
