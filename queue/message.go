package queue

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/loopwork/cardpile/core"
)

// message is the internal envelope stored for each enqueued job.
type message struct {
	Id         string
	Job        core.Job
	EnqueuedAt time.Time
	VisibleAt  time.Time
	Attempts   int
}

// messageMUS serializes queue message envelopes. Same hand-written
// mus-format style as the core record serializers.
var messageMUS = msgMUS{}

type msgMUS struct{}

func (msgMUS) Marshal(m message, bs []byte) (n int) {
	n = ord.String.Marshal(m.Id, bs)
	n += ord.String.Marshal(string(m.Job.CardId), bs[n:])
	n += varint.Int64.Marshal(m.EnqueuedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(m.VisibleAt.UnixMicro(), bs[n:])
	n += varint.Int.Marshal(m.Attempts, bs[n:])
	return n
}

func (msgMUS) Unmarshal(bs []byte) (m message, n int, err error) {
	var (
		n1 int
		s  string
		us int64
	)
	if m.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	m.Job.CardId = core.ID(s)
	if us, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	m.EnqueuedAt = time.UnixMicro(us).UTC()
	if us, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	m.VisibleAt = time.UnixMicro(us).UTC()
	if m.Attempts, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (msgMUS) Size(m message) (size int) {
	size = ord.String.Size(m.Id)
	size += ord.String.Size(string(m.Job.CardId))
	size += varint.Int64.Size(m.EnqueuedAt.UnixMicro())
	size += varint.Int64.Size(m.VisibleAt.UnixMicro())
	size += varint.Int.Size(m.Attempts)
	return size
}

func marshalMessage(m message) []byte {
	buf := make([]byte, messageMUS.Size(m))
	messageMUS.Marshal(m, buf)
	return buf
}

func unmarshalMessage(data []byte) (message, error) {
	m, _, err := messageMUS.Unmarshal(data)
	return m, err
}
