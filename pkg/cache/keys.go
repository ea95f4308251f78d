package cache

import (
	"fmt"
	"strings"
)

const (
	publicFeedKeyFormat = "feed:public:%d:%d:%d:%s:%s"
	PublicFeedPattern   = "feed:public:*"
	FeedGenerationKey   = "feed:generation"
)

// PublicFeedKey identifies one anonymous page of the public feed as of a
// feed generation.
func PublicFeedKey(gen int64, page, limit int, kind string, tags []string) string {
	return fmt.Sprintf(publicFeedKeyFormat, gen, page, limit, kind, strings.Join(tags, ","))
}
