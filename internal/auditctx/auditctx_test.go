package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	//nolint:staticcheck // a nil parent is tolerated
	ctx := WithActor(nil, Actor{UserID: "u-1", IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u-1", actor.UserID)
	require.Equal(t, "10.0.0.1", actor.IPAddress)
	require.Equal(t, "curl/8", actor.UserAgent)
}
