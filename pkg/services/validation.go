package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"devsocial/pkg/models"
)

const (
	maxPostContent    = 2000
	maxCommentContent = 1000
	maxImages         = 10
	maxTags           = 20
	maxTagLength      = 30
	maxMetadataText   = 100
)

var (
	imageURLPattern  = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif|webp)$`)
	linkedURLPattern = regexp.MustCompile(`^https?://.+`)
)

func validateContent(content string, max int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ValidationFailed("content is required")
	}
	if utf8.RuneCountInString(content) > max {
		return "", ValidationFailed(fmt.Sprintf("content must be at most %d characters", max))
	}
	return content, nil
}

func validateImages(images []string) ([]string, error) {
	if len(images) > maxImages {
		return nil, ValidationFailed(fmt.Sprintf("at most %d images are allowed", maxImages))
	}
	out := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if !imageURLPattern.MatchString(img) {
			return nil, ValidationFailed(fmt.Sprintf("invalid image url %q", img))
		}
		out = append(out, img)
	}
	return out, nil
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping the first
// occurrence order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, ValidationFailed(fmt.Sprintf("tag %q is longer than %d characters", t, maxTagLength))
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, ValidationFailed(fmt.Sprintf("at most %d tags are allowed", maxTags))
	}
	return out, nil
}

func validateMetadata(md models.Metadata) error {
	if url := models.LinkedURL(md); url != "" && !linkedURLPattern.MatchString(url) {
		return ValidationFailed("linkedUrl must be an http(s) url")
	}

	switch m := md.(type) {
	case models.UpdateMetadata:
		if utf8.RuneCountInString(m.Location) > maxMetadataText {
			return ValidationFailed("location is too long")
		}
	case models.ProjectUpdateMetadata:
		if strings.TrimSpace(m.ProjectID) == "" {
			return ValidationFailed("projectId is required for project updates")
		}
	case models.AchievementMetadata:
		if utf8.RuneCountInString(m.Title) > maxMetadataText {
			return ValidationFailed("title is too long")
		}
	}
	return nil
}
