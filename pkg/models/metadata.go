package models

import (
	"encoding/json"
	"fmt"
)

// Metadata is the kind-specific part of a post. Each PostKind has exactly one
// variant; DecodeMetadata picks it.
type Metadata interface {
	Kind() PostKind
}

type UpdateMetadata struct {
	Location  string  `json:"location,omitempty"`
	LinkedURL string  `json:"linkedUrl,omitempty"`
	Mentions  []int64 `json:"mentions,omitempty"`
}

func (UpdateMetadata) Kind() PostKind { return KindUpdate }

type ProjectUpdateMetadata struct {
	ProjectID string `json:"projectId"`
	LinkedURL string `json:"linkedUrl,omitempty"`
}

func (ProjectUpdateMetadata) Kind() PostKind { return KindProjectUpdate }

type AchievementMetadata struct {
	Title     string  `json:"title,omitempty"`
	LinkedURL string  `json:"linkedUrl,omitempty"`
	Mentions  []int64 `json:"mentions,omitempty"`
}

func (AchievementMetadata) Kind() PostKind { return KindAchievement }

type AnnouncementMetadata struct {
	LinkedURL string `json:"linkedUrl,omitempty"`
}

func (AnnouncementMetadata) Kind() PostKind { return KindAnnouncement }

// DecodeMetadata unmarshals raw into the variant for kind. Empty input yields
// the zero variant.
func DecodeMetadata(kind PostKind, raw json.RawMessage) (Metadata, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	switch kind {
	case KindUpdate, "":
		var md UpdateMetadata
		if !empty {
			if err := json.Unmarshal(raw, &md); err != nil {
				return nil, err
			}
		}
		return md, nil
	case KindProjectUpdate:
		var md ProjectUpdateMetadata
		if !empty {
			if err := json.Unmarshal(raw, &md); err != nil {
				return nil, err
			}
		}
		return md, nil
	case KindAchievement:
		var md AchievementMetadata
		if !empty {
			if err := json.Unmarshal(raw, &md); err != nil {
				return nil, err
			}
		}
		return md, nil
	case KindAnnouncement:
		var md AnnouncementMetadata
		if !empty {
			if err := json.Unmarshal(raw, &md); err != nil {
				return nil, err
			}
		}
		return md, nil
	}
	return nil, fmt.Errorf("unknown post type %q", kind)
}

// LinkedURL returns the linked URL carried by any variant.
func LinkedURL(md Metadata) string {
	switch m := md.(type) {
	case UpdateMetadata:
		return m.LinkedURL
	case ProjectUpdateMetadata:
		return m.LinkedURL
	case AchievementMetadata:
		return m.LinkedURL
	case AnnouncementMetadata:
		return m.LinkedURL
	}
	return ""
}
