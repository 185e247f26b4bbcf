package wschat

import (
	"fmt"
	"sync"
	"time"
)

// UserStatus is the closed set of presence transitions announced by
// status packets, and the presence value stored on each member.
type UserStatus int

const (
	StatusBad UserStatus = iota
	StatusOffline
	StatusOnline
	StatusAway
	StatusNickChange
	StatusGenderChange
	StatusColorChange
	StatusBack
	StatusTyping
	StatusStopTyping
	StatusOrphan
)

func (s UserStatus) String() string {
	switch s {
	case StatusBad:
		return "bad"
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusAway:
		return "away"
	case StatusNickChange:
		return "nick_change"
	case StatusGenderChange:
		return "gender_change"
	case StatusColorChange:
		return "color_change"
	case StatusBack:
		return "back"
	case StatusTyping:
		return "typing"
	case StatusStopTyping:
		return "stop_typing"
	case StatusOrphan:
		return "orphan"
	default:
		return fmt.Sprintf("user_status(%d)", int(s))
	}
}

// Member is one participant's presence record within a room. MemberID
// is unique only within its room. UserID is 0 for unauthenticated
// members. Typing is client-local state, never serialized.
type Member struct {
	MemberID     int64      `json:"member_id"`
	Name         string     `json:"name"`
	Color        string     `json:"color"`
	Girl         bool       `json:"girl"`
	IsModerator  bool       `json:"is_moderator"`
	IsOwner      bool       `json:"is_owner"`
	Status       UserStatus `json:"status"`
	UserID       int64      `json:"user_id"`
	LastSeenTime int64      `json:"last_seen_time"`
	Typing       bool       `json:"-"`
}

// Room mirrors one joined chat room: the client's own identity in it
// and the member roster, updated from server-pushed packets. Rooms are
// mutated only on the dispatch goroutine; accessors are safe from any
// goroutine.
type Room struct {
	client *Client
	target string

	mu      sync.RWMutex
	ownID   int64
	ownNick string
	joined  bool
	joinSeq int64

	// members is keyed by member id for O(1) lookup; order preserves
	// server-assigned arrival order.
	members map[int64]*Member
	order   []int64
}

func newRoom(c *Client, target string) *Room {
	return &Room{
		client:  c,
		target:  target,
		members: make(map[int64]*Member),
	}
}

// Target returns the room name.
func (r *Room) Target() string { return r.target }

// Joined reports whether the initial roster snapshot has been applied.
func (r *Room) Joined() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.joined
}

// MyMemberID returns the client's own membership id in this room, 0
// until joined.
func (r *Room) MyMemberID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownID
}

// MyNick returns the client's own nickname in this room.
func (r *Room) MyNick() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownNick
}

// Members returns a copy of the roster in arrival order.
func (r *Room) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}

// MemberByID looks up one member by its room-scoped id.
func (r *Room) MemberByID(id int64) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// SendMessage sends a chat message to this room. With a send limit
// configured, exceeding the per-room quota fails with *SendLimitError.
func (r *Room) SendMessage(text string) error {
	if err := r.client.allowSend(r.target); err != nil {
		return err
	}
	return r.client.sendPacket(messageRequest{
		Type:   PacketMessage,
		Target: r.target,
		Text:   text,
		Time:   time.Now().UnixMilli(),
	})
}

// ChangeStatus announces a status transition scoped to this room.
func (r *Room) ChangeStatus(status UserStatus) error {
	return r.client.sendPacket(statusRequest{
		Type:   PacketStatus,
		Target: r.target,
		Status: status,
	})
}

// setJoinInfo records the identity the join reply assigned to us. The
// pending correlation id is held until the roster snapshot arrives.
func (r *Room) setJoinInfo(memberID int64, login string, seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ownID = memberID
	r.ownNick = login
	if seq != 0 {
		r.joinSeq = seq
	}
}

// applyRoster replaces the member roster wholesale with a snapshot.
// It reports whether this was the first snapshot (the joining→joined
// transition) and the correlation id of the join request, if any.
func (r *Room) applyRoster(list []Member) (first bool, joinSeq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[int64]*Member, len(list))
	r.order = r.order[:0]
	for i := range list {
		m := list[i]
		m.Typing = false
		if _, dup := r.members[m.MemberID]; dup {
			continue
		}
		r.members[m.MemberID] = &m
		r.order = append(r.order, m.MemberID)
	}

	first = !r.joined
	r.joined = true
	joinSeq = r.joinSeq
	r.joinSeq = 0
	return first, joinSeq
}

// applyStatus mutates the roster according to one status event. It
// returns an error for invariant violations (events referencing a
// member absent from the roster); the mutation is skipped in that case
// and the room is left untouched.
func (r *Room) applyStatus(upd StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch upd.Status {
	case StatusOnline:
		if upd.MemberID == r.ownID {
			r.ownNick = upd.Name
		}
		if _, ok := r.members[upd.MemberID]; ok {
			return fmt.Errorf("online event for member %d already in roster of %q", upd.MemberID, r.target)
		}
		m := memberFromUpdate(upd)
		r.members[upd.MemberID] = &m
		r.order = append(r.order, upd.MemberID)

	case StatusOffline:
		if _, ok := r.members[upd.MemberID]; !ok {
			return fmt.Errorf("offline event for member %d not in roster of %q", upd.MemberID, r.target)
		}
		if upd.MemberID == r.ownID {
			r.ownNick = ""
		}
		delete(r.members, upd.MemberID)
		for i, id := range r.order {
			if id == upd.MemberID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}

	case StatusAway:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		m.Status = StatusAway

	case StatusBack:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		m.Status = StatusOnline

	case StatusNickChange:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		if upd.MemberID == r.ownID {
			r.ownNick = upd.Name
		}
		m.Name = upd.Name

	case StatusGenderChange:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		// Partial update frames arrive with an empty name; skip those.
		if upd.Name != "" {
			m.Girl = upd.Girl
		}

	case StatusColorChange:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		if upd.Name != "" {
			m.Color = upd.Color
		}

	case StatusTyping:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		m.Typing = true

	case StatusStopTyping:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		m.Typing = false

	case StatusOrphan:
		m, err := r.memberLocked(upd)
		if err != nil {
			return err
		}
		m.Status = StatusOrphan

	case StatusBad:
		// Defensive placeholder, never expected on the wire.

	default:
		return fmt.Errorf("unrecognized user status %d for room %q", int(upd.Status), r.target)
	}

	return nil
}

func (r *Room) memberLocked(upd StatusUpdate) (*Member, error) {
	m, ok := r.members[upd.MemberID]
	if !ok {
		return nil, fmt.Errorf("%s event for member %d not in roster of %q", upd.Status, upd.MemberID, r.target)
	}
	return m, nil
}

func memberFromUpdate(upd StatusUpdate) Member {
	return Member{
		MemberID:     upd.MemberID,
		Name:         upd.Name,
		Color:        upd.Color,
		Girl:         upd.Girl,
		IsModerator:  upd.IsModerator,
		IsOwner:      upd.IsOwner,
		Status:       StatusOnline,
		UserID:       upd.UserID,
		LastSeenTime: upd.LastSeenTime,
	}
}
