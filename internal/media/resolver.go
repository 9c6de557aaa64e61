package media

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dlvideo/internal/model"
)

// DownloadKind selects between a video and an audio-only download.
type DownloadKind string

const (
	KindVideo DownloadKind = "video"
	KindAudio DownloadKind = "audio"
)

// ErrNoStreams is returned when the probe produced no usable descriptors.
// This is a resolution failure and is never retried.
var ErrNoStreams = errors.New("no streams available for this URL")

// CandidateStrategy is one concrete, orderable attempt to satisfy a download
// request. When MergeNeeded is set, VideoID and AudioID are fetched separately
// and muxed locally; otherwise FormatSpec is handed to the extractor as-is.
type CandidateStrategy struct {
	FormatSpec  string
	MergeNeeded bool
	VideoID     string
	AudioID     string
	Description string
}

// audioPairing maps a video container family to the audio codecs and
// containers that can share its output container without re-encoding.
type audioPairing struct {
	audioCodecs     []string
	audioContainers []string
}

var pairingRules = map[string]audioPairing{
	"webm": {audioCodecs: []string{"opus", "vorbis"}, audioContainers: []string{"webm"}},
	"mp4":  {audioCodecs: []string{"aac", "mp4a"}, audioContainers: []string{"m4a", "mp4"}},
	"m4v":  {audioCodecs: []string{"aac", "mp4a"}, audioContainers: []string{"m4a", "mp4"}},
	"mov":  {audioCodecs: []string{"aac", "mp4a"}, audioContainers: []string{"m4a", "mp4"}},
}

// fallbackTiers are the pre-muxed resolution ceilings appended after the
// requested format, tried from best to worst.
var fallbackTiers = []int{1080, 720, 480, 360}

// ResolveCandidates turns a requested format into the ordered list of fetch
// strategies to attempt. The list is never empty on success; an empty
// descriptor list yields ErrNoStreams.
func ResolveCandidates(formatID string, kind DownloadKind, descs []model.StreamDescriptor) ([]CandidateStrategy, error) {
	if len(descs) == 0 {
		return nil, ErrNoStreams
	}

	if kind == KindAudio {
		return audioCandidates(formatID, descs), nil
	}
	return videoCandidates(formatID, descs), nil
}

func videoCandidates(formatID string, descs []model.StreamDescriptor) []CandidateStrategy {
	byID := indexStreams(descs)

	// Composite "video+audio" specifier: both halves are fetched and muxed
	// locally. A composite whose video half has no codec flags falls through
	// to ordinary pairing below.
	if videoID, audioID, ok := splitComposite(formatID); ok {
		v, vOK := byID[videoID]
		if _, aOK := byID[audioID]; vOK && aOK && v.HasVideo() {
			cands := []CandidateStrategy{{
				FormatSpec:  formatID,
				MergeNeeded: true,
				VideoID:     videoID,
				AudioID:     audioID,
				Description: fmt.Sprintf("requested pair %s", formatID),
			}}
			cands = append(cands, pairingCandidates(v, descs)...)
			return append(cands, premuxedFallbacks(descs)...)
		}
		formatID = videoID
	}

	if d, ok := byID[formatID]; ok {
		// A stream that already embeds audio needs no merge logic at all.
		if d.HasVideo() && d.HasAudio() {
			return []CandidateStrategy{{
				FormatSpec:  d.ID,
				Description: fmt.Sprintf("pre-muxed %s (%s)", d.ID, d.Container),
			}}
		}

		if d.HasVideo() {
			cands := pairingCandidates(d, descs)
			return append(cands, premuxedFallbacks(descs)...)
		}
	}

	// Unknown id: lean on the fallback chain alone.
	return premuxedFallbacks(descs)
}

// pairingCandidates builds merge candidates for a video-only stream: first
// the best container-compatible audio partner, then the best audio overall.
func pairingCandidates(video model.StreamDescriptor, descs []model.StreamDescriptor) []CandidateStrategy {
	var cands []CandidateStrategy

	if partner, ok := bestCompatibleAudio(video.Container, descs); ok {
		cands = append(cands, CandidateStrategy{
			FormatSpec:  video.ID + "+" + partner.ID,
			MergeNeeded: true,
			VideoID:     video.ID,
			AudioID:     partner.ID,
			Description: fmt.Sprintf("%s paired with %s audio (%s)", video.ID, partner.AudioCodec, partner.Container),
		})
	}

	if best, ok := bestAudio(descs); ok {
		spec := video.ID + "+" + best.ID
		if len(cands) == 0 || cands[0].FormatSpec != spec {
			cands = append(cands, CandidateStrategy{
				FormatSpec:  spec,
				MergeNeeded: true,
				VideoID:     video.ID,
				AudioID:     best.ID,
				Description: fmt.Sprintf("%s paired with best available audio", video.ID),
			})
		}
	}

	return cands
}

// premuxedFallbacks lists already-muxed alternative encodings by descending
// resolution tier, ending in one guaranteed-available lowest-tier selector.
func premuxedFallbacks(descs []model.StreamDescriptor) []CandidateStrategy {
	premuxed := make([]model.StreamDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.HasVideo() && d.HasAudio() {
			premuxed = append(premuxed, d)
		}
	}
	rankStreams(premuxed)

	var cands []CandidateStrategy
	seen := make(map[string]bool)
	for _, tier := range fallbackTiers {
		for _, d := range premuxed {
			if d.Height == 0 || d.Height > tier {
				continue
			}
			if seen[d.ID] {
				break
			}
			seen[d.ID] = true
			cands = append(cands, CandidateStrategy{
				FormatSpec:  d.ID,
				Description: fmt.Sprintf("pre-muxed fallback %s (%dp)", d.ID, d.Height),
			})
			break
		}
	}

	// Extractor-side selector as the last resort; always resolvable when the
	// source has any stream at all.
	cands = append(cands, CandidateStrategy{
		FormatSpec:  "best",
		Description: "extractor-selected best pre-muxed stream",
	})
	return cands
}

// audioCandidates relaxes the audio request step by step: the exact format,
// best audio, best audio in a mergeable container, then anything at all.
func audioCandidates(formatID string, descs []model.StreamDescriptor) []CandidateStrategy {
	var cands []CandidateStrategy

	if d, ok := indexStreams(descs)[formatID]; ok && d.HasAudio() {
		cands = append(cands, CandidateStrategy{
			FormatSpec:  d.ID,
			Description: fmt.Sprintf("requested audio %s (%s)", d.ID, d.Container),
		})
	}

	cands = append(cands,
		CandidateStrategy{FormatSpec: "bestaudio", Description: "best available audio"},
		CandidateStrategy{FormatSpec: "bestaudio[ext=m4a]", Description: "best m4a audio"},
		CandidateStrategy{FormatSpec: "bestaudio/best", Description: "any best audio"},
	)
	return cands
}

// bestCompatibleAudio picks the highest-ranked audio-only stream whose codec
// or container matches the video container family.
func bestCompatibleAudio(videoContainer string, descs []model.StreamDescriptor) (model.StreamDescriptor, bool) {
	rules, ok := pairingRules[strings.ToLower(videoContainer)]
	if !ok {
		return model.StreamDescriptor{}, false
	}

	var matches []model.StreamDescriptor
	for _, d := range descs {
		if d.HasVideo() || !d.HasAudio() {
			continue
		}
		if matchesPairing(d, rules) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return model.StreamDescriptor{}, false
	}
	rankStreams(matches)
	return matches[0], true
}

func matchesPairing(d model.StreamDescriptor, rules audioPairing) bool {
	for _, c := range rules.audioCodecs {
		if strings.HasPrefix(strings.ToLower(d.AudioCodec), c) {
			return true
		}
	}
	for _, c := range rules.audioContainers {
		if strings.EqualFold(d.Container, c) {
			return true
		}
	}
	return false
}

func bestAudio(descs []model.StreamDescriptor) (model.StreamDescriptor, bool) {
	var audio []model.StreamDescriptor
	for _, d := range descs {
		if !d.HasVideo() && d.HasAudio() {
			audio = append(audio, d)
		}
	}
	if len(audio) == 0 {
		return model.StreamDescriptor{}, false
	}
	rankStreams(audio)
	return audio[0], true
}

// rankStreams sorts descriptors best-first. Height wins; at equal height a
// stream with embedded audio beats one that would need a merge; then a known
// filesize beats an unknown one; the final tie-break is highest bitrate.
func rankStreams(descs []model.StreamDescriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		a, b := descs[i], descs[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.HasAudio() != b.HasAudio() {
			return a.HasAudio()
		}
		if (a.Filesize > 0) != (b.Filesize > 0) {
			return a.Filesize > 0
		}
		return a.Bitrate > b.Bitrate
	})
}

// RankForDisplay orders descriptors for the format picker using the same
// deterministic policy the resolver ranks with.
func RankForDisplay(descs []model.StreamDescriptor) {
	rankStreams(descs)
}

func indexStreams(descs []model.StreamDescriptor) map[string]model.StreamDescriptor {
	byID := make(map[string]model.StreamDescriptor, len(descs))
	for _, d := range descs {
		byID[d.ID] = d
	}
	return byID
}

// splitComposite parses a "videoID+audioID" specifier.
func splitComposite(formatID string) (videoID, audioID string, ok bool) {
	parts := strings.SplitN(formatID, "+", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
