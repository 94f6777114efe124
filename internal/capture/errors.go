package capture

import "errors"

// Sentinel errors for the capture layer. Callers branch with errors.Is;
// the dynamic detail travels in the wrapping message.
var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrAlreadyRecording = errors.New("capture already in progress")
	ErrDeviceResolution = errors.New("capture device resolution failed")
	ErrStreamStart      = errors.New("capture stream start failed")
	ErrStreamStop       = errors.New("capture stream stop failed")
	ErrFileIO           = errors.New("capture file error")
)
