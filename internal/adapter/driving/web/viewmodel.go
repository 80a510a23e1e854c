package web

import (
	"time"

	vm "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driving/web/viewmodel"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

const (
	unavailableMessage = "WiFi status is not available yet. Please try again later."
	displayTimeLayout  = "2006-01-02 15:04:05 MST"
	refreshSeconds     = 30
)

// toStatusViewModel converts the current credential into the status page view
// model. cred may be nil before the first successful rotation.
func toStatusViewModel(cred *model.Credential, nextRun time.Time, noticeHTML string) vm.StatusViewModel {
	view := vm.StatusViewModel{
		NoticeHTML:     noticeHTML,
		RefreshSeconds: refreshSeconds,
	}
	if !nextRun.IsZero() {
		view.NextRun = nextRun.UTC().Format(displayTimeLayout)
	}

	if cred == nil {
		view.Message = unavailableMessage
		return view
	}

	view.Available = true
	view.NetworkName = cred.NetworkName
	view.Passphrase = cred.Passphrase
	if cred.JoinPayloadRef != "" {
		view.QRPath = "/qr/" + cred.JoinPayloadRef
	}
	if !cred.RotatedAt.IsZero() {
		view.LastRotated = cred.RotatedAt.UTC().Format(displayTimeLayout)
	}
	return view
}
