package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SharingLevel is the visibility tier of a dataset.
type SharingLevel int

const (
	SharingPrivate      SharingLevel = 1
	SharingOrganization SharingLevel = 2
	SharingPublic       SharingLevel = 3
)

func (l SharingLevel) String() string {
	switch l {
	case SharingPrivate:
		return "private"
	case SharingOrganization:
		return "organization"
	case SharingPublic:
		return "public"
	default:
		return fmt.Sprintf("sharing_level(%d)", int(l))
	}
}

func (l SharingLevel) Valid() bool {
	return l == SharingPrivate || l == SharingOrganization || l == SharingPublic
}

func (l SharingLevel) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid sharing level %d", int(l))
	}
	return json.Marshal(l.String())
}

func (l *SharingLevel) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSharingLevel(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func ParseSharingLevel(raw string) (SharingLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "private":
		return SharingPrivate, nil
	case "organization", "org":
		return SharingOrganization, nil
	case "public":
		return SharingPublic, nil
	}
	return 0, fmt.Errorf("unknown sharing level %q", raw)
}

// DatasetState is the lifecycle state of a dataset. Datasets are never hard
// deleted while share tokens may still reference them.
type DatasetState int

const (
	DatasetStateActive  DatasetState = 1
	DatasetStateDeleted DatasetState = 2
)

type Dataset struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"owner_id"`
	OrgID        string       `json:"org_id"`
	Name         string       `json:"name"`
	FileKey      string       `json:"-"`
	FileSize     int64        `json:"file_size"`
	ContentType  string       `json:"content_type"`
	SharingLevel SharingLevel `json:"sharing_level"`
	State        DatasetState `json:"-"`
	Ctime        int64        `json:"ctime"`
	Mtime        int64        `json:"mtime"`
}

func (d *Dataset) Deleted() bool {
	return d.State == DatasetStateDeleted
}
