package core

import "github.com/elie00/stream-party-sub001/internal/domain"

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	meta *domain.Member
	conn PartyConnection
}

func NewMemberSession(meta *domain.Member, conn PartyConnection) MemberSession {
	return &memberSession{meta: meta, conn: conn}
}

func (m *memberSession) Meta() *domain.Member  { return m.meta }
func (m *memberSession) Conn() PartyConnection { return m.conn }
