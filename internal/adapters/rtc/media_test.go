package rtc

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/domain"
)

func TestPublishLocalIsIdempotent(t *testing.T) {
	mc, err := NewMediaConnection(webrtc.Configuration{}, "self")
	require.NoError(t, err)
	defer mc.Close()
	require.NoError(t, mc.Start(context.Background()))

	id, err := mc.PublishLocal(domain.SourceMicrophone)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := mc.PublishLocal(domain.SourceMicrophone)
	require.NoError(t, err)
	assert.Equal(t, id, again, "republishing the same source must reuse the track")

	camID, err := mc.PublishLocal(domain.SourceCamera)
	require.NoError(t, err)
	assert.NotEqual(t, id, camID)
}

func TestUnpublishLocalUnknownSourceIsNoop(t *testing.T) {
	mc, err := NewMediaConnection(webrtc.Configuration{}, "self")
	require.NoError(t, err)
	defer mc.Close()
	require.NoError(t, mc.Start(context.Background()))

	require.NoError(t, mc.UnpublishLocal(domain.SourceScreenShare))

	_, err = mc.PublishLocal(domain.SourceScreenShare)
	require.NoError(t, err)
	require.NoError(t, mc.UnpublishLocal(domain.SourceScreenShare))
	require.NoError(t, mc.UnpublishLocal(domain.SourceScreenShare))
}

func TestCreateAndSetOffer(t *testing.T) {
	mc, err := NewMediaConnection(webrtc.Configuration{}, "self")
	require.NoError(t, err)
	defer mc.Close()
	require.NoError(t, mc.Start(context.Background()))

	_, err = mc.PublishLocal(domain.SourceMicrophone)
	require.NoError(t, err)

	offer, err := mc.CreateAndSetOffer()
	require.NoError(t, err)
	require.NotNil(t, offer)
	assert.NotEmpty(t, offer.SDP)
}
