package types

import (
	jsoniter "github.com/json-iterator/go"
)

// Announcement tells the receiver that a payload is waiting in the store.
type Announcement struct {
	KeyToVerify string   `json:"key_to_verify"`
	FileType    FileType `json:"file_type"`
	FileName    string   `json:"file_name"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (a Announcement) Marshal() ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, Wrap(ErrMalformedAnnouncement, err)
	}
	return b, nil
}

// ParseAnnouncement decodes an announcement. A missing key or an unknown file
// type makes the announcement malformed; a missing file type means bin.
func ParseAnnouncement(data []byte) (Announcement, error) {
	var a Announcement
	if err := json.Unmarshal(data, &a); err != nil {
		return Announcement{}, Wrap(ErrMalformedAnnouncement, err)
	}
	if a.KeyToVerify == "" {
		return Announcement{}, Wrapf(ErrMalformedAnnouncement, "missing key_to_verify")
	}
	return a, nil
}
