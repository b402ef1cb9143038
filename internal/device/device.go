// Package device defines the contract between the pipeline and the
// external device-permission collaborator that owns the actual
// microphone and camera handles. The pipeline never acquires devices
// itself; it consumes tracks through these interfaces and releases them
// explicitly on teardown.
package device

import "errors"

// ErrUnavailable is returned when a requested device cannot be provided,
// for example because permission was denied.
var ErrUnavailable = errors.New("device unavailable")

// TrackState mirrors a media track's ready state.
type TrackState int

const (
	TrackLive TrackState = iota
	TrackEnded
)

// Microphone delivers raw capture audio as fixed-size blocks of float32
// samples. Frames stop arriving once the track is stopped.
type Microphone interface {
	// Frames yields capture blocks in order. The channel is closed when
	// the track ends.
	Frames() <-chan []float32

	State() TrackState

	// Clone returns an independent track reading the same input, so the
	// recording path and the uplink path have separate lifecycles.
	Clone() (Microphone, error)

	// Stop releases the track. Idempotent.
	Stop()
}

// EncodedFrame is one already-encoded video frame from the camera track.
// The camera collaborator is responsible for honoring the configured
// resolution and frame-rate bounds.
type EncodedFrame struct {
	Data     []byte
	Keyframe bool
}

// Camera delivers encoded video frames. May be absent entirely; the
// composite recording then proceeds audio-only.
type Camera interface {
	Frames() <-chan EncodedFrame
	State() TrackState
	Stop()
}

// MediaDevices is the handle set acquired by the bootstrap collaborator
// before the session's connect sequence begins.
type MediaDevices interface {
	// Microphone returns the capture track, or ErrUnavailable.
	Microphone() (Microphone, error)

	// Camera returns the video track, or nil when video is disabled.
	Camera() Camera
}
