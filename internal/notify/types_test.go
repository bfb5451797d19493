package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	require.True(t, PriorityLow.Below(PriorityNormal))
	require.True(t, PriorityHigh.Below(PriorityUrgent))
	require.False(t, PriorityNormal.Below(PriorityNormal))
	require.False(t, PriorityUrgent.Below(PriorityHigh))
	require.False(t, PriorityLow.Below(Priority("")))
	require.Equal(t, PriorityNormal, Priority(" ").OrDefault())
	require.Equal(t, PriorityHigh, PriorityHigh.OrDefault())
	require.False(t, Priority("critical").Valid())
}

func TestNormaliseChannels(t *testing.T) {
	got := NormaliseChannels([]Channel{" PUSH", "in_app", "push", "", "email"})
	require.Equal(t, []Channel{ChannelPush, ChannelInApp, ChannelEmail}, got)
	require.Nil(t, NormaliseChannels(nil))
	require.True(t, ContainsChannel(got, ChannelEmail))
	require.False(t, ContainsChannel(got, ChannelSMS))
}

func TestTypeCategories(t *testing.T) {
	require.Equal(t, CategoryStudy, CategoryOf(TypeEssayGraded))
	require.Equal(t, CategorySocial, CategoryOf(TypeMessage))
	require.Equal(t, CategorySystem, CategoryOf(TypeWarning))
	require.True(t, TypeFlashcardDue.Valid())
	require.False(t, Type("digest").Valid())
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, CanTransition(StatusUnread, StatusRead))
	require.True(t, CanTransition(StatusUnread, StatusArchived))
	require.True(t, CanTransition(StatusRead, StatusDeleted))
	require.True(t, CanTransition(StatusArchived, StatusDeleted))

	require.False(t, CanTransition(StatusRead, StatusUnread))
	require.False(t, CanTransition(StatusArchived, StatusRead))
	require.False(t, CanTransition(StatusDeleted, StatusUnread))
	require.False(t, CanTransition(StatusRead, StatusRead))
}

func TestNotificationExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	n := Notification{Status: StatusUnread, ExpiresAt: &expires}

	require.True(t, n.IsUnread())
	require.False(t, n.Expired(now))
	require.True(t, n.Expired(expires))
	require.False(t, Notification{}.Expired(now))
}
