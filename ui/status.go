package ui

import (
	"fmt"
	"strings"

	"github.com/loopcore/looperengine/bridge"
	"github.com/loopcore/looperengine/engine"
)

// stateLabel renders one of the seven transport states with the color the
// teacher's mixer used for mute/solo accents, repurposed here for
// record/play/idle.
func stateLabel(s engine.State) string {
	switch s {
	case engine.StateRecording, engine.StateOverdubbing:
		return RecordingStyle.Render(s.String())
	case engine.StatePlaying, engine.StateTransitioning, engine.StatePendingTrackChange:
		return PlayingStyle.Render(s.String())
	default:
		return IdleStyle.Render(s.String())
	}
}

// RenderStatus builds the one-line transport status the demo host repaints
// at 60-120 Hz (spec §5), reading only what StateBridge publishes plus the
// track count — it never touches a track's sample buffer directly.
func RenderStatus(snap bridge.StateSnapshot, state engine.State, trackCount int) string {
	var tracks []string
	for i := 0; i < trackCount; i++ {
		label := fmt.Sprintf("T%d", i+1)
		if i < len(snap.TrackLengths) && snap.TrackLengths[i] > 0 {
			label += "*"
		}
		style := TrackStyle
		if int32(i) == snap.ActiveTrack {
			style = ActiveTrackStyle
		}
		tracks = append(tracks, style.Render(label))
	}

	beat := BeatStyle.Render(fmt.Sprintf("beat %d", snap.MetronomeBeat))
	parts := []string{stateLabel(state), strings.Join(tracks, " "), beat}
	if snap.FreezeOn {
		parts = append(parts, FreezeStyle.Render("FREEZE"))
	}
	if snap.HasPending {
		parts = append(parts, IdleStyle.Render(fmt.Sprintf("-> T%d at wrap", snap.PendingTrack+1)))
	}
	return strings.Join(parts, "  ")
}

// RenderHelp is the one-line key reference under the status bar.
func RenderHelp() string {
	return HelpStyle.Render("r record · space play/stop · tab next track · u undo · shift+u redo · f freeze · q quit")
}
