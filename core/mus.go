// Copyright 2026 Loopwork Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written mus-format serializers for the persisted record types.
// Timestamps are stored as Unix microseconds; vectors as a varint length
// prefix followed by varint-encoded float32 values.

var (
	// CardMUS serializes Card records.
	CardMUS = cardMUS{}
	// ChunkMUS serializes Chunk records.
	ChunkMUS = chunkMUS{}
)

type cardMUS struct{}

// Marshal writes c into bs and returns the number of bytes written.
// bs must be at least Size(c) bytes long.
func (cardMUS) Marshal(c Card, bs []byte) (n int) {
	n = ord.String.Marshal(string(c.Id), bs)
	n += varint.Int.Marshal(int(c.Type), bs[n:])
	n += ord.String.Marshal(c.Source, bs[n:])
	n += ord.String.Marshal(c.Title, bs[n:])
	n += varint.Int.Marshal(int(c.Status), bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += ord.String.Marshal(c.ErrorMessage, bs[n:])
	n += marshalTime(c.CreatedAt, bs[n:])
	n += marshalTime(c.UpdatedAt, bs[n:])
	return n
}

// Unmarshal reads a Card from bs.
func (cardMUS) Unmarshal(bs []byte) (c Card, n int, err error) {
	var (
		n1 int
		s  string
		i  int
	)
	if s, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	c.Id = ID(s)
	if i, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.Type = CardType(i)
	if c.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if i, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.Status = CardStatus(i)
	if c.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.ErrorMessage, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

// Size returns the serialized size of c in bytes.
func (cardMUS) Size(c Card) (size int) {
	size = ord.String.Size(string(c.Id))
	size += varint.Int.Size(int(c.Type))
	size += ord.String.Size(c.Source)
	size += ord.String.Size(c.Title)
	size += varint.Int.Size(int(c.Status))
	size += ord.String.Size(c.Content)
	size += ord.String.Size(c.ErrorMessage)
	size += sizeTime(c.CreatedAt)
	size += sizeTime(c.UpdatedAt)
	return size
}

type chunkMUS struct{}

// Marshal writes c into bs and returns the number of bytes written.
func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(string(c.Id), bs)
	n += ord.String.Marshal(string(c.CardId), bs[n:])
	n += varint.Int.Marshal(c.Seq, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	return n
}

// Unmarshal reads a Chunk from bs.
func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var (
		n1 int
		s  string
	)
	if s, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	c.Id = ID(s)
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.CardId = ID(s)
	if c.Seq, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

// Size returns the serialized size of c in bytes.
func (chunkMUS) Size(c Chunk) (size int) {
	size = ord.String.Size(string(c.Id))
	size += ord.String.Size(string(c.CardId))
	size += varint.Int.Size(c.Seq)
	size += ord.String.Size(c.Text)
	size += sizeVector(c.Vector)
	return size
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	var (
		length int
		n1     int
		f      float32
	)
	if length, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float32, length)
	for i := 0; i < length; i++ {
		if f, n1, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
		v[i] = f
	}
	return
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return size
}
