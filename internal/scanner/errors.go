package scanner

import "errors"

var (
	// ErrCameraUnavailable means the frame source could not be opened. It is
	// fatal to the scan session only; the cart is unaffected.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrAlreadyActive is returned when Start is called on a running adapter.
	ErrAlreadyActive = errors.New("scanner already active")
	// ErrNotActive is returned by operations that need a live stream.
	ErrNotActive = errors.New("scanner not active")
)

// Remediation is shown to the operator alongside ErrCameraUnavailable.
const Remediation = "Check that the camera is connected, that no other application is using it, " +
	"that the stream URL in the terminal settings is correct, and restart the scanner."
