// Package viewmodel defines presentation-ready structs for the status page.
// View models decouple template rendering from domain model types.
package viewmodel

// StatusViewModel holds everything the status page renders.
type StatusViewModel struct {
	Available   bool
	Message     string // Shown instead of the credential when Available is false.
	NetworkName string
	Passphrase  string
	QRPath      string
	LastRotated string // Formatted for display; empty if unknown.
	NextRun     string // Formatted for display; empty if no scheduler.
	NoticeHTML  string // Sanitized HTML; empty for no notice.
	Flash       string // One-shot result of a manual rotation.
	FlashOK     bool

	// Manual rotation form; only rendered when RotateEnabled is true.
	RotateEnabled bool
	CSRFToken     string

	RefreshSeconds int
}
