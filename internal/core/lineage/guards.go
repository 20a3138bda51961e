package lineage

import (
	"fmt"
	"strings"
	"time"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// Row is the minimal view of a stored version row the guards need.
type Row struct {
	PrimaryID  int64
	SchemaID   int64
	Version    Version
	ValidFrom  time.Time
	ValidUntil *time.Time
	Hidden     bool
}

// RequiredFieldsContext carries the raw identity fields of a candidate document.
type RequiredFieldsContext struct {
	IDString string
	Title    string
	Version  string
}

// InsertContext provides context for the version insert guard.
// ValidFrom is the explicitly supplied date (nil when omitted); EffectiveFrom
// is the date the row will actually carry. Latest is the newest row of the
// lineage regardless of hidden; Valid is the newest non-hidden row. Both are
// nil for a new lineage.
type InsertContext struct {
	IDString      string
	Version       Version
	ValidFrom     *time.Time
	EffectiveFrom time.Time
	ValidUntil    *time.Time
	Latest        *Row
	Valid         *Row
}

// ValidityEditContext provides context for an administrator validity edit.
// Previous and Next are the neighbouring versions in the lineage, if any.
type ValidityEditContext struct {
	PrimaryID  int64
	ValidFrom  time.Time
	ValidUntil *time.Time
	Previous   *Row
	Next       *Row
}

// CheckRequiredFields evaluates whether a candidate carries id, title and version.
// Rules:
// - every missing field is named in a single reason
func CheckRequiredFields(ctx RequiredFieldsContext) GuardResult {
	var missing []string
	if strings.TrimSpace(ctx.IDString) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(ctx.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(ctx.Version) == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
		}
	}

	return GuardResult{Allowed: true}
}

// CanInsert evaluates whether a new version may be added to a lineage.
// Rules:
// - version must be strictly greater than the latest version (hidden or not)
// - explicit valid_from must be strictly after the current valid row's valid_from
// - the effective valid_from must be after an explicit valid_until of the current valid row
// - valid_until must not precede the effective valid_from
func CanInsert(ctx InsertContext) GuardResult {
	if ctx.Latest != nil && !ctx.Version.After(ctx.Latest.Version) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("version %s of %s must be greater than latest version %s",
				ctx.Version, ctx.IDString, ctx.Latest.Version),
		}
	}

	if ctx.ValidFrom != nil && ctx.Valid != nil && !ctx.ValidFrom.After(ctx.Valid.ValidFrom) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("valid_from %s of %s must be after valid_from %s of version %s",
				ctx.ValidFrom.Format(DateLayout), ctx.IDString,
				ctx.Valid.ValidFrom.Format(DateLayout), ctx.Valid.Version),
		}
	}

	if ctx.Valid != nil && ctx.Valid.ValidUntil != nil && !ctx.EffectiveFrom.After(*ctx.Valid.ValidUntil) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("valid_from %s of %s overlaps version %s, valid until %s",
				ctx.EffectiveFrom.Format(DateLayout), ctx.IDString,
				ctx.Valid.Version, ctx.Valid.ValidUntil.Format(DateLayout)),
		}
	}

	if ctx.ValidUntil != nil && ctx.ValidUntil.Before(ctx.EffectiveFrom) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("valid_until %s of %s is before valid_from %s",
				ctx.ValidUntil.Format(DateLayout), ctx.IDString, ctx.EffectiveFrom.Format(DateLayout)),
		}
	}

	return GuardResult{Allowed: true}
}

// CanEditValidity evaluates whether an administrator may set a version's window.
// Rules:
// - valid_until must not precede valid_from
// - the window must start after the previous version's window ends (or starts, if open)
// - the window must end before the next version starts
func CanEditValidity(ctx ValidityEditContext) GuardResult {
	if ctx.ValidUntil != nil && ctx.ValidUntil.Before(ctx.ValidFrom) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("valid_until %s is before valid_from %s",
				ctx.ValidUntil.Format(DateLayout), ctx.ValidFrom.Format(DateLayout)),
		}
	}

	if p := ctx.Previous; p != nil {
		if p.ValidUntil != nil && !ctx.ValidFrom.After(*p.ValidUntil) {
			return GuardResult{
				Allowed: false,
				Reason: fmt.Sprintf("valid_from %s overlaps version %s (valid until %s)",
					ctx.ValidFrom.Format(DateLayout), p.Version, p.ValidUntil.Format(DateLayout)),
			}
		}
		if !ctx.ValidFrom.After(p.ValidFrom) {
			return GuardResult{
				Allowed: false,
				Reason: fmt.Sprintf("valid_from %s must be after valid_from %s of version %s",
					ctx.ValidFrom.Format(DateLayout), p.ValidFrom.Format(DateLayout), p.Version),
			}
		}
	}

	if n := ctx.Next; n != nil {
		if ctx.ValidUntil == nil || !ctx.ValidUntil.Before(n.ValidFrom) {
			return GuardResult{
				Allowed: false,
				Reason: fmt.Sprintf("validity window overlaps version %s (valid from %s)",
					n.Version, n.ValidFrom.Format(DateLayout)),
			}
		}
	}

	return GuardResult{Allowed: true}
}
