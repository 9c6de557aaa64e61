package media

import (
	"testing"

	"dlvideo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStreams() []model.StreamDescriptor {
	return []model.StreamDescriptor{
		{ID: "premux720", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 720, Bitrate: 2500},
		{ID: "premux360", Container: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 360, Bitrate: 800},
		{ID: "vid1080", Container: "webm", VideoCodec: "vp9", AudioCodec: "none", Height: 1080, Bitrate: 4000},
		{ID: "vidmp4-1080", Container: "mp4", VideoCodec: "avc1", AudioCodec: "none", Height: 1080, Bitrate: 4200},
		{ID: "opusaudio", Container: "webm", VideoCodec: "none", AudioCodec: "opus", Bitrate: 160},
		{ID: "m4a-audio", Container: "m4a", VideoCodec: "none", AudioCodec: "mp4a.40.2", Bitrate: 128},
	}
}

func TestResolveCandidatesNoStreams(t *testing.T) {
	_, err := ResolveCandidates("22", KindVideo, nil)
	assert.ErrorIs(t, err, ErrNoStreams)
}

func TestResolvePremuxedShortcut(t *testing.T) {
	cands, err := ResolveCandidates("premux720", KindVideo, sampleStreams())
	require.NoError(t, err)

	// A stream that already has audio needs exactly one candidate.
	require.Len(t, cands, 1)
	assert.Equal(t, "premux720", cands[0].FormatSpec)
	assert.False(t, cands[0].MergeNeeded)
}

func TestResolveVideoOnlyPairsCompatibleAudio(t *testing.T) {
	cands, err := ResolveCandidates("vid1080", KindVideo, sampleStreams())
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	// webm video pairs with the opus track first.
	first := cands[0]
	assert.True(t, first.MergeNeeded)
	assert.Equal(t, "vid1080", first.VideoID)
	assert.Equal(t, "opusaudio", first.AudioID)

	// The chain always ends with the guaranteed selector.
	assert.Equal(t, "best", cands[len(cands)-1].FormatSpec)
	assert.False(t, cands[len(cands)-1].MergeNeeded)
}

func TestResolveMp4PairsM4aAudio(t *testing.T) {
	cands, err := ResolveCandidates("vidmp4-1080", KindVideo, sampleStreams())
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	assert.True(t, cands[0].MergeNeeded)
	assert.Equal(t, "m4a-audio", cands[0].AudioID)
}

func TestResolveCompositeRequest(t *testing.T) {
	cands, err := ResolveCandidates("vid1080+m4a-audio", KindVideo, sampleStreams())
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	first := cands[0]
	assert.True(t, first.MergeNeeded)
	assert.Equal(t, "vid1080", first.VideoID)
	assert.Equal(t, "m4a-audio", first.AudioID)
	assert.Equal(t, "vid1080+m4a-audio", first.FormatSpec)

	// The requested pair is followed by pairing and pre-muxed fallbacks.
	assert.Greater(t, len(cands), 2)
}

func TestResolveUnknownFormatFallsBack(t *testing.T) {
	cands, err := ResolveCandidates("doesnotexist", KindVideo, sampleStreams())
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	for _, c := range cands {
		assert.False(t, c.MergeNeeded)
	}
	assert.Equal(t, "best", cands[len(cands)-1].FormatSpec)
}

func TestResolveFallbackTiersDescend(t *testing.T) {
	cands, err := ResolveCandidates("missing", KindVideo, sampleStreams())
	require.NoError(t, err)

	var specs []string
	for _, c := range cands {
		specs = append(specs, c.FormatSpec)
	}

	// 720p fills the 1080 and 720 tiers once, 360p fills the rest.
	assert.Equal(t, []string{"premux720", "premux360", "best"}, specs)
}

func TestResolveAudioRelaxationChain(t *testing.T) {
	cands, err := ResolveCandidates("opusaudio", KindAudio, sampleStreams())
	require.NoError(t, err)
	require.Len(t, cands, 4)

	assert.Equal(t, "opusaudio", cands[0].FormatSpec)
	assert.Equal(t, "bestaudio", cands[1].FormatSpec)
	assert.Equal(t, "bestaudio[ext=m4a]", cands[2].FormatSpec)
	assert.Equal(t, "bestaudio/best", cands[3].FormatSpec)
}

func TestResolveAudioUnknownFormatSkipsExact(t *testing.T) {
	cands, err := ResolveCandidates("nosuch", KindAudio, sampleStreams())
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "bestaudio", cands[0].FormatSpec)
}

func TestRankStreamsOrdering(t *testing.T) {
	descs := []model.StreamDescriptor{
		{ID: "a", VideoCodec: "avc1", AudioCodec: "none", Height: 720, Bitrate: 3000},
		{ID: "b", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 720, Bitrate: 2000},
		{ID: "c", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 1080, Bitrate: 1000},
		{ID: "d", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 720, Bitrate: 2500},
	}
	RankForDisplay(descs)

	// Height first, then embedded audio, then bitrate.
	assert.Equal(t, "c", descs[0].ID)
	assert.Equal(t, "d", descs[1].ID)
	assert.Equal(t, "b", descs[2].ID)
	assert.Equal(t, "a", descs[3].ID)
}

func TestSplitComposite(t *testing.T) {
	v, a, ok := splitComposite("137+140")
	require.True(t, ok)
	assert.Equal(t, "137", v)
	assert.Equal(t, "140", a)

	_, _, ok = splitComposite("137")
	assert.False(t, ok)

	_, _, ok = splitComposite("+140")
	assert.False(t, ok)
}
