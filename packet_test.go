package wschat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDecodePacketRejectsMalformedFrames(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"no type tag":       `{"target":"#go"}`,
		"non-numeric type":  `{"type":"join"}`,
		"unknown type":      `{"type":42}`,
		"negative type":     `{"type":-1}`,
		"join no target":    `{"type":6,"member_id":3}`,
		"status no status":  `{"type":5,"member_id":3}`,
		"error no code":     `{"type":0,"info":"x"}`,
		"system no message": `{"type":1,"target":"#go"}`,
		"list no list":      `{"type":3,"target":"#go"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodePacket([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestDecodePacketShapes(t *testing.T) {
	pkt, err := decodePacket([]byte(`{"type":0,"sequenceId":7,"source":6,"target":"#go","code":6,"info":"room exists"}`))
	require.NoError(t, err)
	ef, ok := pkt.(errorFrame)
	require.True(t, ok)
	assert.EqualValues(t, 7, ef.SequenceID)
	assert.Equal(t, PacketJoin, ef.Source)
	assert.Equal(t, ErrCodeAlreadyExists, ef.Code)
	assert.Equal(t, "room exists", ef.Info)

	pkt, err = decodePacket([]byte(`{"type":3,"sequenceId":9,"target":"#go","list":[{"member_id":1,"name":"ann","girl":true},{"member_id":2,"name":"bob"}]}`))
	require.NoError(t, err)
	lf, ok := pkt.(onlineListFrame)
	require.True(t, ok)
	assert.Equal(t, "#go", lf.Target)
	require.Len(t, lf.List, 2)
	assert.EqualValues(t, 1, lf.List[0].MemberID)
	assert.True(t, lf.List[0].Girl)

	pkt, err = decodePacket([]byte(`{"type":5,"target":"#go","status":8,"member_id":2,"name":"bob"}`))
	require.NoError(t, err)
	sf, ok := pkt.(statusFrame)
	require.True(t, ok)
	assert.Equal(t, StatusTyping, sf.Status)
	assert.EqualValues(t, 2, sf.MemberID)

	pkt, err = decodePacket([]byte(`{"type":10}`))
	require.NoError(t, err)
	_, ok = pkt.(pingFrame)
	assert.True(t, ok)
}

func TestEncodeOmitsSequenceIDWhenUncorrelated(t *testing.T) {
	raw, err := encodePacket(pingReply{Type: PacketPing})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(raw, "sequenceId").Exists())
	assert.EqualValues(t, PacketPing, gjson.GetBytes(raw, "type").Int())

	raw, err = encodePacket(statusRequest{Type: PacketStatus, Status: StatusAway})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(raw, "sequenceId").Exists())
	assert.False(t, gjson.GetBytes(raw, "target").Exists())
}

func TestEncodeJoinRequest(t *testing.T) {
	raw, err := encodePacket(joinRequest{
		Type:        PacketJoin,
		SequenceID:  12,
		Target:      "#go",
		LoadHistory: true,
	})
	require.NoError(t, err)

	assert.EqualValues(t, PacketJoin, gjson.GetBytes(raw, "type").Int())
	assert.EqualValues(t, 12, gjson.GetBytes(raw, "sequenceId").Int())
	assert.Equal(t, "#go", gjson.GetBytes(raw, "target").String())
	assert.False(t, gjson.GetBytes(raw, "auto_login").Bool())
	assert.True(t, gjson.GetBytes(raw, "load_history").Bool())
}

func TestEncodeAuthVariants(t *testing.T) {
	raw, err := encodePacket(authRequest{Type: PacketAuth, SequenceID: 3, UKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "k", gjson.GetBytes(raw, "ukey").String())
	assert.False(t, gjson.GetBytes(raw, "login").Exists())
	assert.False(t, gjson.GetBytes(raw, "token").Exists())

	raw, err = encodePacket(authRequest{Type: PacketAuth, SequenceID: 4, Token: "session"})
	require.NoError(t, err)
	assert.Equal(t, "session", gjson.GetBytes(raw, "token").String())
	assert.False(t, gjson.GetBytes(raw, "ukey").Exists())
}
