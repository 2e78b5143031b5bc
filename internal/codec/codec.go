/*
 * Copyright 2015 Google Inc. All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package codec implements the fixed, self-describing binary encoding used
// for every value written to the store: byte strings, 32/64-bit unsigned
// integers, tagged optionals, sets, and the composite Location/CursorInfo/
// path-set/argument-vector types built from them.
//
// The format is hand-rolled rather than encoding/gob. It encodes values
// only; table keys are plain strings built elsewhere (see
// model.Location.Key). Every encoder here is paired with a decoder such
// that decode(encode(v)) == v.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/charlesturner7c5/rtags/internal/model"
)

// Writer accumulates an encoded value. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the encoded form accumulated so far.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutUint32 appends a big-endian u32.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// PutUint64 appends a big-endian u64.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutBool appends a single presence/flag byte.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// PutBytes appends a length-prefixed byte string.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.buf.Write(b)
}

// PutString appends a length-prefixed string.
func (w *Writer) PutString(s string) {
	w.PutBytes([]byte(s))
}

// Reader decodes a value previously produced by Writer.
type Reader struct {
	buf *bytes.Reader
}

// NewReader wraps raw bytes for decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: bytes.NewReader(b)}
}

// Done reports whether every byte has been consumed.
func (r *Reader) Done() bool { return r.buf.Len() == 0 }

func (r *Reader) GetUint32() (uint32, error) {
	var b [4]byte
	if _, err := r.buf.Read(b[:]); err != nil {
		return 0, fmt.Errorf("codec: reading uint32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *Reader) GetUint64() (uint64, error) {
	var b [8]byte
	if _, err := r.buf.Read(b[:]); err != nil {
		return 0, fmt.Errorf("codec: reading uint64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *Reader) GetBool() (bool, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return false, fmt.Errorf("codec: reading bool: %w", err)
	}
	return b != 0, nil
}

func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n > 0 {
		if _, err := r.buf.Read(out); err != nil {
			return nil, fmt.Errorf("codec: reading bytes: %w", err)
		}
	}
	return out, nil
}

func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeLocation serializes a model.Location as path + offset.
func EncodeLocation(w *Writer, loc model.Location) {
	w.PutString(loc.Path)
	w.PutUint32(loc.Offset)
}

// DecodeLocation is the inverse of EncodeLocation.
func DecodeLocation(r *Reader) (model.Location, error) {
	path, err := r.GetString()
	if err != nil {
		return model.Location{}, err
	}
	offset, err := r.GetUint32()
	if err != nil {
		return model.Location{}, err
	}
	return model.NewLocation(path, offset), nil
}

// EncodeLocationSet serializes a model.LocationSet as a count followed by
// each Location.
func EncodeLocationSet(set model.LocationSet) []byte {
	w := &Writer{}
	w.PutUint32(uint32(len(set)))
	for loc := range set {
		EncodeLocation(w, loc)
	}
	return w.Bytes()
}

// DecodeLocationSet is the inverse of EncodeLocationSet.
func DecodeLocationSet(b []byte) (model.LocationSet, error) {
	r := NewReader(b)
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	set := make(model.LocationSet, n)
	for i := uint32(0); i < n; i++ {
		loc, err := DecodeLocation(r)
		if err != nil {
			return nil, err
		}
		set[loc] = struct{}{}
	}
	return set, nil
}

// EncodeCursorInfo serializes a model.CursorInfo: kind, symbol length, an
// optional target, and the reference set.
func EncodeCursorInfo(ci model.CursorInfo) []byte {
	w := &Writer{}
	w.PutUint32(uint32(ci.Kind))
	w.PutUint32(ci.SymbolLength)
	w.PutBool(ci.Target != nil)
	if ci.Target != nil {
		EncodeLocation(w, *ci.Target)
	}
	w.PutUint32(uint32(len(ci.References)))
	for loc := range ci.References {
		EncodeLocation(w, loc)
	}
	return w.Bytes()
}

// DecodeCursorInfo is the inverse of EncodeCursorInfo.
func DecodeCursorInfo(b []byte) (model.CursorInfo, error) {
	r := NewReader(b)
	kind, err := r.GetUint32()
	if err != nil {
		return model.CursorInfo{}, err
	}
	length, err := r.GetUint32()
	if err != nil {
		return model.CursorInfo{}, err
	}
	hasTarget, err := r.GetBool()
	if err != nil {
		return model.CursorInfo{}, err
	}
	var target *model.Location
	if hasTarget {
		loc, err := DecodeLocation(r)
		if err != nil {
			return model.CursorInfo{}, err
		}
		target = &loc
	}
	n, err := r.GetUint32()
	if err != nil {
		return model.CursorInfo{}, err
	}
	refs := make(model.LocationSet, n)
	for i := uint32(0); i < n; i++ {
		loc, err := DecodeLocation(r)
		if err != nil {
			return model.CursorInfo{}, err
		}
		refs[loc] = struct{}{}
	}
	return model.CursorInfo{
		Kind:         model.CursorKind(kind),
		SymbolLength: length,
		Target:       target,
		References:   refs,
	}, nil
}

// EncodePathSet serializes a model.PathSet as a count followed by each path.
func EncodePathSet(set model.PathSet) []byte {
	w := &Writer{}
	w.PutUint32(uint32(len(set)))
	for p := range set {
		w.PutString(p)
	}
	return w.Bytes()
}

// DecodePathSet is the inverse of EncodePathSet.
func DecodePathSet(b []byte) (model.PathSet, error) {
	r := NewReader(b)
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	set := make(model.PathSet, n)
	for i := uint32(0); i < n; i++ {
		p, err := r.GetString()
		if err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set, nil
}

// EncodeArgs serializes an argument vector (FileInformation's value) as a
// count followed by each argument string.
func EncodeArgs(args []string) []byte {
	w := &Writer{}
	w.PutUint32(uint32(len(args)))
	for _, a := range args {
		w.PutString(a)
	}
	return w.Bytes()
}

// DecodeArgs is the inverse of EncodeArgs.
func DecodeArgs(b []byte) ([]string, error) {
	r := NewReader(b)
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		a, err := r.GetString()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}
