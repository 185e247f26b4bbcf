package wschat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(target string, status UserStatus, id int64, name string) StatusUpdate {
	return StatusUpdate{Target: target, Status: status, MemberID: id, Name: name}
}

func TestRoomRosterConsistency(t *testing.T) {
	r := newRoom(nil, "#go")
	r.applyRoster(nil)

	require.NoError(t, r.applyStatus(update("#go", StatusOnline, 1, "ann")))
	require.NoError(t, r.applyStatus(update("#go", StatusOnline, 2, "bob")))
	require.NoError(t, r.applyStatus(update("#go", StatusOnline, 3, "cid")))
	require.NoError(t, r.applyStatus(update("#go", StatusOffline, 2, "bob")))

	members := r.Members()
	require.Len(t, members, 2)
	assert.EqualValues(t, 1, members[0].MemberID)
	assert.EqualValues(t, 3, members[1].MemberID)

	_, ok := r.MemberByID(2)
	assert.False(t, ok)
}

func TestRoomDuplicateOnlineRejected(t *testing.T) {
	r := newRoom(nil, "#go")
	r.applyRoster([]Member{{MemberID: 1, Name: "ann"}})

	err := r.applyStatus(update("#go", StatusOnline, 1, "ann"))
	assert.Error(t, err)
	assert.Len(t, r.Members(), 1)
}

func TestRoomStatusForAbsentMember(t *testing.T) {
	r := newRoom(nil, "#go")
	r.applyRoster(nil)

	for _, status := range []UserStatus{
		StatusOffline, StatusAway, StatusBack, StatusNickChange,
		StatusGenderChange, StatusColorChange, StatusTyping,
		StatusStopTyping, StatusOrphan,
	} {
		err := r.applyStatus(update("#go", status, 9, "ghost"))
		assert.Error(t, err, "status %s", status)
	}
	assert.Empty(t, r.Members())
}

func TestRoomStatusTransitions(t *testing.T) {
	r := newRoom(nil, "#go")
	r.applyRoster([]Member{{MemberID: 1, Name: "ann", Status: StatusOnline}})

	require.NoError(t, r.applyStatus(update("#go", StatusAway, 1, "ann")))
	m, _ := r.MemberByID(1)
	assert.Equal(t, StatusAway, m.Status)

	require.NoError(t, r.applyStatus(update("#go", StatusBack, 1, "ann")))
	m, _ = r.MemberByID(1)
	assert.Equal(t, StatusOnline, m.Status)

	require.NoError(t, r.applyStatus(update("#go", StatusTyping, 1, "ann")))
	m, _ = r.MemberByID(1)
	assert.True(t, m.Typing)

	require.NoError(t, r.applyStatus(update("#go", StatusStopTyping, 1, "ann")))
	m, _ = r.MemberByID(1)
	assert.False(t, m.Typing)

	require.NoError(t, r.applyStatus(update("#go", StatusNickChange, 1, "annie")))
	m, _ = r.MemberByID(1)
	assert.Equal(t, "annie", m.Name)

	require.NoError(t, r.applyStatus(update("#go", StatusOrphan, 1, "annie")))
	m, _ = r.MemberByID(1)
	assert.Equal(t, StatusOrphan, m.Status)

	// bad is a defensive no-op, even for absent members.
	require.NoError(t, r.applyStatus(update("#go", StatusBad, 77, "")))
}

func TestRoomGenderAndColorGuardedByName(t *testing.T) {
	r := newRoom(nil, "#go")
	r.applyRoster([]Member{{MemberID: 1, Name: "ann", Color: "red"}})

	// Partial frames with an empty name must not apply.
	upd := update("#go", StatusGenderChange, 1, "")
	upd.Girl = true
	require.NoError(t, r.applyStatus(upd))
	m, _ := r.MemberByID(1)
	assert.False(t, m.Girl)

	upd.Name = "ann"
	require.NoError(t, r.applyStatus(upd))
	m, _ = r.MemberByID(1)
	assert.True(t, m.Girl)

	colorUpd := update("#go", StatusColorChange, 1, "")
	colorUpd.Color = "blue"
	require.NoError(t, r.applyStatus(colorUpd))
	m, _ = r.MemberByID(1)
	assert.Equal(t, "red", m.Color)

	colorUpd.Name = "ann"
	require.NoError(t, r.applyStatus(colorUpd))
	m, _ = r.MemberByID(1)
	assert.Equal(t, "blue", m.Color)
}

func TestRoomOwnIdentityTracking(t *testing.T) {
	r := newRoom(nil, "#go")
	r.setJoinInfo(5, "me", 11)

	first, joinSeq := r.applyRoster([]Member{{MemberID: 5, Name: "me"}})
	assert.True(t, first)
	assert.EqualValues(t, 11, joinSeq)
	assert.True(t, r.Joined())
	assert.EqualValues(t, 5, r.MyMemberID())
	assert.Equal(t, "me", r.MyNick())

	// Own nick follows nick_change and clears when we go offline.
	require.NoError(t, r.applyStatus(update("#go", StatusNickChange, 5, "me2")))
	assert.Equal(t, "me2", r.MyNick())

	require.NoError(t, r.applyStatus(update("#go", StatusOffline, 5, "me2")))
	assert.Equal(t, "", r.MyNick())
	assert.Empty(t, r.Members())
}

func TestRoomRosterReplacesWholesale(t *testing.T) {
	r := newRoom(nil, "#go")

	first, _ := r.applyRoster([]Member{
		{MemberID: 1, Name: "ann", Typing: true},
		{MemberID: 2, Name: "bob"},
	})
	assert.True(t, first)

	members := r.Members()
	require.Len(t, members, 2)
	// Typing is client-local and resets on every snapshot.
	assert.False(t, members[0].Typing)

	first, _ = r.applyRoster([]Member{{MemberID: 3, Name: "cid"}})
	assert.False(t, first)

	members = r.Members()
	require.Len(t, members, 1)
	assert.EqualValues(t, 3, members[0].MemberID)
}
