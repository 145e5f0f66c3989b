package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// timestampLayouts はcreated_atとして受け付ける書式。
// オフセットの無い値（Postgresのtimestamp型）はUTCとして扱う。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp はマネージドバックエンドが返す作成日時。
// タイムゾーンの有無を問わずパースし、ゼロ値はnullとして出力する。
type Timestamp struct {
	time.Time
}

// NewTimestamp はtをTimestampに変換する。
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp はtimestampLayoutsのいずれかでsをパースする。
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Timestamp{Time: t}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Timestamp{}, firstErr
}

// MarshalJSON はRFC 3339形式で出力する。ゼロ値はnull。
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON はnullやパースできない値をゼロ値として受け付ける。
// 元の値は行のカラム集合に残るため、ここでは失敗させない。
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if parsed, err := ParseTimestamp(s); err == nil {
		*t = parsed
	}
	return nil
}

// record はマネージドバックエンドから受け取った行のカラムをそのまま保持する。
type record map[string]json.RawMessage

// decodeRecord はdataを型付きの値と元のカラム集合の両方にデコードする。
// 型の合わないカラムは型付きの値に反映せず、元のカラム集合にだけ残す。
func decodeRecord(data []byte, typed any) (record, error) {
	var raw record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal(data, typed); err != nil && !errors.As(err, &typeErr) {
		return nil, err
	}
	return raw, nil
}

// encodeRecord は元のカラム集合があればそれを、無ければ型付きの値を出力する。
func encodeRecord(raw record, typed any) ([]byte, error) {
	if raw != nil {
		return json.Marshal(map[string]json.RawMessage(raw))
	}
	return json.Marshal(typed)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var v plain
	raw, err := decodeRecord(data, &v)
	if err != nil {
		return err
	}
	*p = Profile(v)
	p.raw = raw
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return encodeRecord(p.raw, plain(p))
}

func (c *Connection) UnmarshalJSON(data []byte) error {
	type plain Connection
	var v plain
	raw, err := decodeRecord(data, &v)
	if err != nil {
		return err
	}
	*c = Connection(v)
	c.raw = raw
	return nil
}

func (c Connection) MarshalJSON() ([]byte, error) {
	type plain Connection
	return encodeRecord(c.raw, plain(c))
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var v plain
	raw, err := decodeRecord(data, &v)
	if err != nil {
		return err
	}
	*m = Message(v)
	m.raw = raw
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return encodeRecord(m.raw, plain(m))
}
