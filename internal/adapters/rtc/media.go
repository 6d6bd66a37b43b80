// Package rtc wraps the pion peer connection used to publish local media
// tracks into the session.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/domain"
)

type MediaConnection struct {
	pc       *webrtc.PeerConnection
	identity domain.ParticipantID
	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
	cancel   context.CancelFunc

	mu      sync.Mutex
	tracks  map[domain.TrackSource]*webrtc.TrackLocalStaticRTP
	senders map[domain.TrackSource]*webrtc.RTPSender
}

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewMediaConnection(cfg webrtc.Configuration, identity domain.ParticipantID) (*MediaConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &MediaConnection{
		pc:       pc,
		identity: identity,
		tracks:   make(map[domain.TrackSource]*webrtc.TrackLocalStaticRTP),
		senders:  make(map[domain.TrackSource]*webrtc.RTPSender),
	}, nil
}

// Start configures internal callbacks and binds the connection lifetime to ctx.
func (c *MediaConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("identity", string(c.identity)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("identity", string(c.identity)).Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	return nil
}

// CreateAndSetOffer produces the local SDP with ICE gathering complete.
func (c *MediaConnection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return c.pc.LocalDescription(), nil
}

func (c *MediaConnection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *MediaConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *MediaConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }

func (c *MediaConnection) OnClosed(fn func()) { c.onClosed = fn }

// PublishLocal attaches a static RTP track for the given source and
// returns its track id. Publishing an already-published source is a no-op.
func (c *MediaConnection) PublishLocal(src domain.TrackSource) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if track, ok := c.tracks[src]; ok {
		return track.ID(), nil
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		codecFor(src),
		fmt.Sprintf("%s-%s", src, c.identity),
		fmt.Sprintf("stream-%s", c.identity),
	)
	if err != nil {
		return "", err
	}
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return "", err
	}

	// Read and discard RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	c.tracks[src] = track
	c.senders[src] = sender
	log.Info().Str("module", "rtc").Str("source", src.String()).Str("track_id", track.ID()).Msg("local track published")
	return track.ID(), nil
}

// UnpublishLocal detaches the local track for the given source.
func (c *MediaConnection) UnpublishLocal(src domain.TrackSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender, ok := c.senders[src]
	if !ok {
		return nil
	}
	delete(c.senders, src)
	delete(c.tracks, src)
	if err := c.pc.RemoveTrack(sender); err != nil {
		return err
	}
	log.Info().Str("module", "rtc").Str("source", src.String()).Msg("local track unpublished")
	return nil
}

func (c *MediaConnection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("identity", string(c.identity)).Msg("close error")
		}
	}
}

func codecFor(src domain.TrackSource) webrtc.RTPCodecCapability {
	if src == domain.SourceMicrophone {
		return webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		}
	}
	return webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}
}
