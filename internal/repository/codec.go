package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quakescope/internal/model"
)

// storedRegistration accepts metadata values of any JSON type. Older writers
// stored numbers and booleans (appVersion: 3) where we now keep strings.
type storedRegistration struct {
	Token        string             `json:"token"`
	CreatedAt    int64              `json:"created_at"`
	UpdatedAt    int64              `json:"updated_at"`
	Metadata     map[string]any     `json:"metadata"`
	Preferences  *model.Preferences `json:"preferences"`
	DeliveredIDs []string           `json:"delivered_ids"`
}

func (s *storedRegistration) registration() *model.Registration {
	r := &model.Registration{
		Token:        strings.TrimSpace(s.Token),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Preferences:  s.Preferences,
		DeliveredIDs: s.DeliveredIDs,
	}
	if len(s.Metadata) > 0 {
		r.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			if str, ok := metadataString(v); ok {
				r.Metadata[k] = str
			}
		}
	}
	return r
}

// metadataString renders a decoded JSON value as a metadata string.
// Null values are dropped.
func metadataString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// decodeRegistrations parses a stored collection. A document that is not a
// JSON array is an error. Entries that cannot be read or have no token are
// dropped, and a repeated token replaces the earlier entry in place.
func decodeRegistrations(data []byte) ([]*model.Registration, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}

	out := make([]*model.Registration, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, entry := range raw {
		r, ok := decodeEntry(entry)
		if !ok {
			continue
		}
		if i, ok := index[r.Token]; ok {
			out[i] = r
			continue
		}
		index[r.Token] = len(out)
		out = append(out, r)
	}
	return out, nil
}

func decodeEntry(entry json.RawMessage) (*model.Registration, bool) {
	dec := json.NewDecoder(bytes.NewReader(entry))
	dec.UseNumber()

	var s *storedRegistration
	if err := dec.Decode(&s); err != nil || s == nil {
		return nil, false
	}
	r := s.registration()
	if r.Token == "" {
		return nil, false
	}
	return r, true
}

// encodeRegistrations renders the collection as an indented JSON array.
func encodeRegistrations(regs []*model.Registration) ([]byte, error) {
	if regs == nil {
		regs = []*model.Registration{}
	}
	data, err := json.MarshalIndent(regs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registrations: %w", err)
	}
	return data, nil
}
