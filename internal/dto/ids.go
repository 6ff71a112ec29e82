package dto

// IDCodec turns internal identifiers into opaque external strings and back.
type IDCodec interface {
	Encode(id uint64) string
	Decode(s string) (uint64, error)
}

func encodeOptional(ids IDCodec, id *uint64) *string {
	if id == nil {
		return nil
	}
	out := ids.Encode(*id)
	return &out
}
