package protocol

// GroupMember is one entry in a group-membership query result. Immutable
// once decoded.
type GroupMember struct {
	ConnectionID string
	UserID       string
}

// GroupMemberPage is the payload carried in the Ack answering a
// GroupMemberQuery: one page of members plus the continuation token for
// the next page (empty when the listing is exhausted).
type GroupMemberPage struct {
	Members           []GroupMember
	ContinuationToken string
}

// EncodeGroupMemberPage encodes a query-result page as an ack payload.
func EncodeGroupMemberPage(p *GroupMemberPage) []byte {
	e := NewEncoderWithCap(64)
	e.WriteUvarint(uint64(len(p.Members)))
	for _, m := range p.Members {
		e.WriteString(m.ConnectionID)
		e.WriteString(m.UserID)
	}
	e.WriteString(p.ContinuationToken)
	return e.Bytes()
}

// DecodeGroupMemberPage decodes a query-result page from an ack payload.
func DecodeGroupMemberPage(data []byte) (*GroupMemberPage, error) {
	d := NewDecoder(data)
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, &FieldError{Field: "Members", Want: "member list", Err: err}
	}
	p := &GroupMemberPage{}
	if count > 0 {
		p.Members = make([]GroupMember, count)
		for i := 0; i < count; i++ {
			if p.Members[i].ConnectionID, err = d.ReadString(); err != nil {
				return nil, &FieldError{Field: "Members", Want: "member list", Err: err}
			}
			if p.Members[i].UserID, err = d.ReadString(); err != nil {
				return nil, &FieldError{Field: "Members", Want: "member list", Err: err}
			}
		}
	}
	if p.ContinuationToken, err = d.ReadString(); err != nil {
		return nil, &FieldError{Field: "ContinuationToken", Want: "string", Err: err}
	}
	return p, nil
}
