package protocol

import (
	"fmt"
)

// elemTag identifies the wire type of one array element. The tag makes
// every element self-describing, so decoders can skip trailing fields
// added by newer peers and report type mismatches against the exact
// field that failed.
type elemTag byte

const (
	tagNil        elemTag = 0x00 // explicit default / absent value
	tagInt        elemTag = 0x01 // zigzag svarint
	tagStr        elemTag = 0x02 // length-prefixed string
	tagBin        elemTag = 0x03 // length-prefixed bytes
	tagStrList    elemTag = 0x04 // count + strings
	tagStrMap     elemTag = 0x05 // count + (string, string) pairs
	tagBinMap     elemTag = 0x06 // count + (string, bytes) pairs
	tagStrListMap elemTag = 0x07 // count + (string, string list) pairs
)

// String returns the wire-type name used in decode diagnostics.
func (t elemTag) String() string {
	switch t {
	case tagNil:
		return "nil"
	case tagInt:
		return "int"
	case tagStr:
		return "string"
	case tagBin:
		return "bytes"
	case tagStrList:
		return "string list"
	case tagStrMap:
		return "string map"
	case tagBinMap:
		return "payload map"
	case tagStrListMap:
		return "header map"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// FieldError reports a decode failure for a single message field, naming
// the field and the wire type that was expected so diagnostics can point
// at the exact malformed element.
type FieldError struct {
	Field string // field name as cataloged in the message set
	Want  string // expected wire type
	Got   string // observed wire type, if the tag itself was readable
	Err   error  // underlying decode error, if any
}

// Error returns the error message.
func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: field %q (%s): %v", e.Field, e.Want, e.Err)
	}
	return fmt.Sprintf("protocol: field %q: expected %s, got %s", e.Field, e.Want, e.Got)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// fieldWriter accumulates tagged elements for one message body. Trailing
// elements holding default values are trimmed before encoding, so optional
// fields cost nothing on the wire when unset.
type fieldWriter struct {
	elems    []*Encoder
	defaults []bool
}

func newFieldWriter() *fieldWriter {
	return &fieldWriter{}
}

func (w *fieldWriter) elem(isDefault bool) *Encoder {
	e := NewEncoderWithCap(32)
	w.elems = append(w.elems, e)
	w.defaults = append(w.defaults, isDefault)
	return e
}

// Int appends a signed integer element.
func (w *fieldWriter) Int(v int64) {
	e := w.elem(v == 0)
	e.WriteByte(byte(tagInt))
	e.WriteSvarint(v)
}

// Bool appends a boolean element, encoded as an integer 0 or 1.
func (w *fieldWriter) Bool(v bool) {
	var i int64
	if v {
		i = 1
	}
	w.Int(i)
}

// Str appends a string element.
func (w *fieldWriter) Str(s string) {
	e := w.elem(s == "")
	e.WriteByte(byte(tagStr))
	e.WriteString(s)
}

// Bin appends a byte-payload element.
func (w *fieldWriter) Bin(b []byte) {
	e := w.elem(len(b) == 0)
	e.WriteByte(byte(tagBin))
	e.WriteLenBytes(b)
}

// StrList appends a string-list element.
func (w *fieldWriter) StrList(list []string) {
	e := w.elem(len(list) == 0)
	e.WriteByte(byte(tagStrList))
	e.WriteUvarint(uint64(len(list)))
	for _, s := range list {
		e.WriteString(s)
	}
}

// StrMap appends a string-to-string map element (claims, extensible members).
func (w *fieldWriter) StrMap(m map[string]string) {
	e := w.elem(len(m) == 0)
	e.WriteByte(byte(tagStrMap))
	e.WriteUvarint(uint64(len(m)))
	for k, v := range m {
		e.WriteString(k)
		e.WriteString(v)
	}
}

// BinMap appends a payload-set element: protocol name mapped to the raw
// serialization for that client protocol.
func (w *fieldWriter) BinMap(m map[string][]byte) {
	e := w.elem(len(m) == 0)
	e.WriteByte(byte(tagBinMap))
	e.WriteUvarint(uint64(len(m)))
	for k, v := range m {
		e.WriteString(k)
		e.WriteLenBytes(v)
	}
}

// StrListMap appends a header-style map element: name mapped to a list of
// values.
func (w *fieldWriter) StrListMap(m map[string][]string) {
	e := w.elem(len(m) == 0)
	e.WriteByte(byte(tagStrListMap))
	e.WriteUvarint(uint64(len(m)))
	for k, vs := range m {
		e.WriteString(k)
		e.WriteUvarint(uint64(len(vs)))
		for _, v := range vs {
			e.WriteString(v)
		}
	}
}

// encodeTo writes the element array (count + elements) to e, trimming
// trailing default-valued elements.
func (w *fieldWriter) encodeTo(e *Encoder) {
	n := len(w.elems)
	for n > 0 && w.defaults[n-1] {
		n--
	}
	e.WriteUvarint(uint64(n))
	for i := 0; i < n; i++ {
		e.WriteBytes(w.elems[i].Bytes())
	}
}

// fieldReader reads tagged elements in declaration order. Reads past the
// end of the array yield zero values, which is how absent optional trailing
// fields decode to their defaults. The first decode failure is latched in
// err; subsequent reads return zero values.
type fieldReader struct {
	d         *Decoder
	remaining int
	err       error
}

func newFieldReader(d *Decoder) (*fieldReader, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	return &fieldReader{d: d, remaining: count}, nil
}

// next reads the tag for the next element. Returns tagNil with ok=false
// when the array is exhausted or a previous error latched.
func (r *fieldReader) next(name, want string) (elemTag, bool) {
	if r.err != nil || r.remaining == 0 {
		return tagNil, false
	}
	r.remaining--
	b, err := r.d.ReadByte()
	if err != nil {
		r.err = &FieldError{Field: name, Want: want, Err: err}
		return tagNil, false
	}
	return elemTag(b), true
}

func (r *fieldReader) mismatch(name, want string, got elemTag) {
	r.err = &FieldError{Field: name, Want: want, Got: got.String()}
}

func (r *fieldReader) fail(name, want string, err error) {
	r.err = &FieldError{Field: name, Want: want, Err: err}
}

// Int reads an integer element.
func (r *fieldReader) Int(name string) int64 {
	tag, ok := r.next(name, "int")
	if !ok || tag == tagNil {
		return 0
	}
	if tag != tagInt {
		r.mismatch(name, "int", tag)
		return 0
	}
	v, err := r.d.ReadSvarint()
	if err != nil {
		r.fail(name, "int", err)
		return 0
	}
	return v
}

// Bool reads a boolean element (integer 0/1 on the wire).
func (r *fieldReader) Bool(name string) bool {
	return r.Int(name) != 0
}

// Str reads a string element.
func (r *fieldReader) Str(name string) string {
	tag, ok := r.next(name, "string")
	if !ok || tag == tagNil {
		return ""
	}
	if tag != tagStr {
		r.mismatch(name, "string", tag)
		return ""
	}
	s, err := r.d.ReadString()
	if err != nil {
		r.fail(name, "string", err)
		return ""
	}
	return s
}

// Bin reads a byte-payload element.
func (r *fieldReader) Bin(name string) []byte {
	tag, ok := r.next(name, "bytes")
	if !ok || tag == tagNil {
		return nil
	}
	if tag != tagBin {
		r.mismatch(name, "bytes", tag)
		return nil
	}
	b, err := r.d.ReadLenBytes()
	if err != nil {
		r.fail(name, "bytes", err)
		return nil
	}
	return b
}

// StrList reads a string-list element.
func (r *fieldReader) StrList(name string) []string {
	tag, ok := r.next(name, "string list")
	if !ok || tag == tagNil {
		return nil
	}
	if tag != tagStrList {
		r.mismatch(name, "string list", tag)
		return nil
	}
	count, err := r.d.ReadCollectionCount()
	if err != nil {
		r.fail(name, "string list", err)
		return nil
	}
	if count == 0 {
		return nil
	}
	list := make([]string, count)
	for i := 0; i < count; i++ {
		list[i], err = r.d.ReadString()
		if err != nil {
			r.fail(name, "string list", err)
			return nil
		}
	}
	return list
}

// StrMap reads a string-to-string map element.
func (r *fieldReader) StrMap(name string) map[string]string {
	tag, ok := r.next(name, "string map")
	if !ok || tag == tagNil {
		return nil
	}
	if tag != tagStrMap {
		r.mismatch(name, "string map", tag)
		return nil
	}
	count, err := r.d.ReadCollectionCount()
	if err != nil {
		r.fail(name, "string map", err)
		return nil
	}
	if count == 0 {
		return nil
	}
	m := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, err := r.d.ReadString()
		if err != nil {
			r.fail(name, "string map", err)
			return nil
		}
		v, err := r.d.ReadString()
		if err != nil {
			r.fail(name, "string map", err)
			return nil
		}
		m[k] = v
	}
	return m
}

// BinMap reads a payload-set element.
func (r *fieldReader) BinMap(name string) map[string][]byte {
	tag, ok := r.next(name, "payload map")
	if !ok || tag == tagNil {
		return nil
	}
	if tag != tagBinMap {
		r.mismatch(name, "payload map", tag)
		return nil
	}
	count, err := r.d.ReadCollectionCount()
	if err != nil {
		r.fail(name, "payload map", err)
		return nil
	}
	if count == 0 {
		return nil
	}
	m := make(map[string][]byte, count)
	for i := 0; i < count; i++ {
		k, err := r.d.ReadString()
		if err != nil {
			r.fail(name, "payload map", err)
			return nil
		}
		v, err := r.d.ReadLenBytes()
		if err != nil {
			r.fail(name, "payload map", err)
			return nil
		}
		m[k] = v
	}
	return m
}

// StrListMap reads a header-style map element.
func (r *fieldReader) StrListMap(name string) map[string][]string {
	tag, ok := r.next(name, "header map")
	if !ok || tag == tagNil {
		return nil
	}
	if tag != tagStrListMap {
		r.mismatch(name, "header map", tag)
		return nil
	}
	count, err := r.d.ReadCollectionCount()
	if err != nil {
		r.fail(name, "header map", err)
		return nil
	}
	if count == 0 {
		return nil
	}
	m := make(map[string][]string, count)
	for i := 0; i < count; i++ {
		k, err := r.d.ReadString()
		if err != nil {
			r.fail(name, "header map", err)
			return nil
		}
		n, err := r.d.ReadCollectionCount()
		if err != nil {
			r.fail(name, "header map", err)
			return nil
		}
		vs := make([]string, n)
		for j := 0; j < n; j++ {
			vs[j], err = r.d.ReadString()
			if err != nil {
				r.fail(name, "header map", err)
				return nil
			}
		}
		m[k] = vs
	}
	return m
}

// Err returns the first decode error encountered, if any.
func (r *fieldReader) Err() error {
	return r.err
}

// finish skips any trailing elements the decoder does not recognize.
// Unknown optional fields from newer peers are tolerated; anything that
// cannot be skipped structurally is a decode error.
func (r *fieldReader) finish() error {
	if r.err != nil {
		return r.err
	}
	for r.remaining > 0 {
		r.remaining--
		if err := skipElement(r.d); err != nil {
			r.err = err
			return err
		}
	}
	return nil
}

// skipElement consumes one tagged element of any recognized wire type.
func skipElement(d *Decoder) error {
	b, err := d.ReadByte()
	if err != nil {
		return err
	}
	switch elemTag(b) {
	case tagNil:
		return nil
	case tagInt:
		_, err := d.ReadSvarint()
		return err
	case tagStr, tagBin:
		return d.SkipLenBytes()
	case tagStrList:
		count, err := d.ReadCollectionCount()
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := d.SkipLenBytes(); err != nil {
				return err
			}
		}
		return nil
	case tagStrMap, tagBinMap:
		count, err := d.ReadCollectionCount()
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := d.SkipLenBytes(); err != nil {
				return err
			}
			if err := d.SkipLenBytes(); err != nil {
				return err
			}
		}
		return nil
	case tagStrListMap:
		count, err := d.ReadCollectionCount()
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := d.SkipLenBytes(); err != nil {
				return err
			}
			n, err := d.ReadCollectionCount()
			if err != nil {
				return err
			}
			for j := 0; j < n; j++ {
				if err := d.SkipLenBytes(); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return &FieldError{Field: "unknown", Want: "recognized wire type", Got: elemTag(b).String()}
	}
}
