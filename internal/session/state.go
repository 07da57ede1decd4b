package session

// State is the lifecycle state of a capture session.
type State string

// Session states.
const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateActive     State = "active"
	StatePaused     State = "paused"
	StateFinalizing State = "finalizing"
	StateFailed     State = "failed"
)

// Mode is the session configuration resolved once at start, replacing
// scattered is-camera-enabled/is-mic-enabled branching through the
// lifecycle.
type Mode string

// Session modes.
const (
	ModeScreenOnly        Mode = "screen"
	ModeScreenPlusMic     Mode = "screen+mic"
	ModeScreenPlusCam     Mode = "screen+cam"
	ModeScreenPlusCamMic  Mode = "screen+cam+mic"
)

// resolveMode derives the tagged mode from what was actually acquired.
func resolveMode(camera, mic bool) Mode {
	switch {
	case camera && mic:
		return ModeScreenPlusCamMic
	case camera:
		return ModeScreenPlusCam
	case mic:
		return ModeScreenPlusMic
	default:
		return ModeScreenOnly
	}
}
