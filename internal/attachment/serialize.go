package attachment

import (
	"encoding/json"
	"fmt"
)

// Serialize captures the persisted state of every attachment.
func (m *Manager) Serialize() []Record {
	out := make([]Record, 0, len(m.order))
	for _, a := range m.order {
		out = append(out, a.Serialize())
	}
	return out
}

// Deserialize restores hidden state by name and returns how many records
// matched an attachment.
func (m *Manager) Deserialize(recs []Record) int {
	n := 0
	for _, r := range recs {
		a := m.GetInterfaceByName(r.Name)
		if a == nil {
			continue
		}
		a.HideAttachment(r.Hidden)
		n++
	}
	return n
}

// MarshalState encodes Serialize as JSON.
func (m *Manager) MarshalState() ([]byte, error) {
	return json.MarshalIndent(m.Serialize(), "", "  ")
}

func (m *Manager) UnmarshalState(data []byte) error {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("attachment: decode state: %w", err)
	}
	m.Deserialize(recs)
	return nil
}
