package ladder

import (
	"github.com/gmma/gmma/internal/store"
)

// fixed chunk duration for segmented renditions, in seconds
const SegmentSeconds = 10

const (
	High     = "high"
	Standard = "standard"
	Audio    = "audio"
)

type Profile struct {
	Width   int
	Height  int
	Bitrate int // in kilobits
}

// Spec describes one target encoding of a master file.
type Spec struct {
	Name string

	// video geometry, zero for audio-only renditions
	Width  int
	Height int

	VideoCodec string
	AudioCodec string

	AudioBitrate int // in kilobits

	// segmented renditions produce a manifest and chunk files,
	// flat ones a single media file
	Segmented      bool
	SegmentSeconds int

	// file extension of flat renditions
	Ext string
}

var defaultProfiles = map[string]Profile{
	High:     {Width: 1920, Height: 1080},
	Standard: {Width: 854, Height: 480},
}

// Ladder is the static, ordered set of rendition specs per asset kind.
// Profile geometry is configurable, membership and order are not.
type Ladder struct {
	profiles     map[string]Profile
	audioBitrate int
}

func New(profiles map[string]Profile, audioBitrate int) *Ladder {
	merged := map[string]Profile{}
	for name, profile := range defaultProfiles {
		merged[name] = profile
	}
	for name, profile := range profiles {
		if profile.Width > 0 && profile.Height > 0 {
			merged[name] = profile
		}
	}

	if audioBitrate <= 0 {
		audioBitrate = 192
	}

	return &Ladder{
		profiles:     merged,
		audioBitrate: audioBitrate,
	}
}

// ForKind returns the ladder for one asset kind. The standard rendition is
// produced only when the caller opts in, it is never attempted otherwise.
func (l *Ladder) ForKind(kind store.Kind, includeStandard bool) []Spec {
	if kind == store.KindAudio {
		return []Spec{{
			Name:         Audio,
			AudioCodec:   "libmp3lame",
			AudioBitrate: l.audioBitrate,
			Ext:          "mp3",
		}}
	}

	specs := []Spec{l.video(High)}
	if includeStandard {
		specs = append(specs, l.video(Standard))
	}

	specs = append(specs, Spec{
		Name:           Audio,
		AudioCodec:     "aac",
		AudioBitrate:   l.audioBitrate,
		Segmented:      true,
		SegmentSeconds: SegmentSeconds,
	})

	return specs
}

// Names returns the quality tokens servable for a kind.
func (l *Ladder) Names(kind store.Kind) []string {
	if kind == store.KindAudio {
		return []string{Audio}
	}
	return []string{High, Standard, Audio}
}

func (l *Ladder) video(name string) Spec {
	profile := l.profiles[name]
	return Spec{
		Name:           name,
		Width:          profile.Width,
		Height:         profile.Height,
		VideoCodec:     "libx264",
		AudioCodec:     "aac",
		AudioBitrate:   l.audioBitrate,
		Segmented:      true,
		SegmentSeconds: SegmentSeconds,
	}
}
