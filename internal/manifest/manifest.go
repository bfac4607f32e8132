// Package manifest loads vault genesis parameters from a CUE file.
//
// A manifest looks like:
//
//	vault: {
//		authority: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
//		fee_bps:   500
//		burn_bps:  2000
//		delay_seconds: 86400
//	}
//
// The file is unified with an embedded schema, so range and type errors
// are reported by CUE with file positions before any vault code runs.
package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/solforge/internal/ir"
	"github.com/roach88/solforge/internal/vault"
)

//go:embed schema.cue
var schemaCUE string

// Manifest is a decoded genesis manifest.
type Manifest struct {
	Authority      ir.Identity
	FeeBasisPoints uint16
	BurnBps        uint16

	// DelaySeconds is unchanged when the manifest omits it.
	DelaySeconds vault.Change[int64]
}

// Params converts the manifest to initialize parameters.
func (m Manifest) Params() vault.Params {
	return vault.Params{
		Authority:         m.Authority,
		FeeBasisPoints:    m.FeeBasisPoints,
		BurnPercentageBps: m.BurnBps,
		DelaySeconds:      m.DelaySeconds,
	}
}

// Error is a manifest error with source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and decodes the manifest at path.
func LoadFile(path string) (Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes a manifest. filename is used in error positions.
func Parse(filename string, src []byte) (Manifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Manifest{}, fmt.Errorf("compile manifest schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Manifest{}, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Manifest{}, formatCUEError(err)
	}

	return decode(unified.LookupPath(cue.ParsePath("vault")))
}

func decode(v cue.Value) (Manifest, error) {
	var m Manifest

	authVal := v.LookupPath(cue.ParsePath("authority"))
	s, err := authVal.String()
	if err != nil {
		return m, formatCUEError(err)
	}
	if m.Authority, err = ir.ParseIdentity(s); err != nil {
		return m, &Error{Field: "vault.authority", Message: err.Error(), Pos: authVal.Pos()}
	}
	if m.Authority.IsZero() {
		return m, &Error{Field: "vault.authority", Message: "authority must be non-zero", Pos: authVal.Pos()}
	}

	fee, err := v.LookupPath(cue.ParsePath("fee_bps")).Int64()
	if err != nil {
		return m, formatCUEError(err)
	}
	burn, err := v.LookupPath(cue.ParsePath("burn_bps")).Int64()
	if err != nil {
		return m, formatCUEError(err)
	}
	// Bounds were enforced by the schema.
	m.FeeBasisPoints = uint16(fee)
	m.BurnBps = uint16(burn)

	if d := v.LookupPath(cue.ParsePath("delay_seconds")); d.Exists() {
		delay, err := d.Int64()
		if err != nil {
			return m, formatCUEError(err)
		}
		m.DelaySeconds = vault.SetTo(delay)
	}
	return m, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return first
}
