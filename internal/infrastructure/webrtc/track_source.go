package webrtc

import (
	"fmt"

	"streamlayout/internal/core/domain"
	"streamlayout/pkg/validation"

	"github.com/pion/webrtc/v3"
)

// Track sources as announced by publishers.
const (
	SourceCamera     = "camera"
	SourceScreen     = "screen"
	SourceMicrophone = "microphone"
)

// TrackInfo describes one published media track. Tracks that share a
// StreamID belong to the same displayed stream.
type TrackInfo struct {
	TrackID       string               `json:"track_id"`
	StreamID      domain.StreamID      `json:"stream_id"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
	Avatar        string               `json:"avatar,omitempty"`
	Kind          string               `json:"kind"`
	Source        string               `json:"source,omitempty"`
	Muted         bool                 `json:"muted"`
}

// MediaTrack is satisfied by pion's remote and local tracks.
type MediaTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// TrackInfoFrom reads the ids and kind off a pion track.
func TrackInfoFrom(track MediaTrack, participantID domain.ParticipantID, displayName, source string) TrackInfo {
	return TrackInfo{
		TrackID:       track.ID(),
		StreamID:      domain.StreamID(track.StreamID()),
		ParticipantID: participantID,
		DisplayName:   displayName,
		Kind:          track.Kind().String(),
		Source:        source,
	}
}

func (t TrackInfo) isVideo() bool {
	return webrtc.NewRTPCodecType(t.Kind) == webrtc.RTPCodecTypeVideo
}

// Validate checks the track kind and source.
func (t TrackInfo) Validate() error {
	if err := validation.ValidateStreamID(string(t.StreamID)); err != nil {
		return err
	}
	if err := validation.ValidateParticipantID(string(t.ParticipantID)); err != nil {
		return err
	}
	if err := validation.ValidateDisplayName(t.DisplayName); err != nil {
		return err
	}
	if webrtc.NewRTPCodecType(t.Kind) == 0 {
		return fmt.Errorf("invalid track kind %q (must be audio or video)", t.Kind)
	}
	if t.Source != "" {
		if err := validation.ValidateOneOf(t.Source, "track source", SourceCamera, SourceScreen, SourceMicrophone); err != nil {
			return err
		}
	}
	return nil
}

// StreamsFromTracks folds tracks into streams, in order of first appearance.
// A stream has video when any of its tracks is video and is enabled when any
// track is unmuted. The first track of a stream supplies its identity.
func StreamsFromTracks(tracks []TrackInfo, localParticipantID domain.ParticipantID) []domain.Stream {
	streams := make([]domain.Stream, 0, len(tracks))
	index := make(map[domain.StreamID]int, len(tracks))

	for _, t := range tracks {
		i, ok := index[t.StreamID]
		if !ok {
			i = len(streams)
			index[t.StreamID] = i
			streams = append(streams, domain.Stream{
				ID:          t.StreamID,
				IsMine:      t.ParticipantID == localParticipantID,
				DisplayName: t.DisplayName,
				Avatar:      t.Avatar,
			})
		}

		s := &streams[i]
		if t.isVideo() {
			s.HasVideo = true
		}
		if t.Source == SourceScreen {
			s.IsScreenShare = true
		}
		if !t.Muted {
			s.IsEnabled = true
		}
	}

	return streams
}

// CallUpdate is the wire form of a call snapshot. Clients send either
// resolved streams or the raw published tracks.
type CallUpdate struct {
	State            domain.CallState `json:"state"`
	ParticipantCount int              `json:"participant_count"`
	IsOneToOne       bool             `json:"one_to_one"`
	Streams          []domain.Stream  `json:"streams,omitempty"`
	Tracks           []TrackInfo      `json:"tracks,omitempty"`
}

// Validate checks the call state and that exactly one of streams or tracks
// describes the call.
func (u CallUpdate) Validate() error {
	if !u.State.Valid() {
		return fmt.Errorf("invalid call state %q", u.State)
	}
	if err := validation.ValidateParticipantCount(u.ParticipantCount); err != nil {
		return err
	}
	if len(u.Streams) > 0 && len(u.Tracks) > 0 {
		return fmt.Errorf("streams and tracks are mutually exclusive")
	}

	ids := make([]string, len(u.Streams))
	for i, s := range u.Streams {
		ids[i] = string(s.ID)
		if err := validation.ValidateDisplayName(s.DisplayName); err != nil {
			return fmt.Errorf("streams[%d]: %w", i, err)
		}
	}
	if err := validation.ValidateStreamIDs(ids); err != nil {
		return err
	}

	for i, t := range u.Tracks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tracks[%d]: %w", i, err)
		}
	}
	return nil
}

// Snapshot resolves the update for the given local participant.
func (u CallUpdate) Snapshot(localParticipantID domain.ParticipantID) domain.CallSnapshot {
	streams := u.Streams
	if len(u.Tracks) > 0 {
		streams = StreamsFromTracks(u.Tracks, localParticipantID)
	}
	return domain.CallSnapshot{
		State:            u.State,
		ParticipantCount: u.ParticipantCount,
		IsOneToOne:       u.IsOneToOne,
		Streams:          streams,
	}
}
