package content

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fallback templates used when the token budget denies a generation or the
// generation service is unavailable. The pipeline degrades to one of these
// instead of skipping the schedule.
var fallbackTemplates = []string{
	"Today's focus: %s. What's your take? Share your thoughts below!",
	"Let's talk about %s: one small insight a day keeps the feed fresh.",
	"Quick thought on %s: consistency beats intensity. More soon!",
	"Exploring %s today. Follow along for more updates on this topic.",
}

// Fallback returns a deterministic template for the topic so repeated
// fallbacks for the same schedule don't produce identical feeds day to day
// only by accident of ordering.
func Fallback(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "our latest updates"
	}
	h := fnv.New32a()
	h.Write([]byte(topic))
	tmpl := fallbackTemplates[int(h.Sum32())%len(fallbackTemplates)]
	return fmt.Sprintf(tmpl, topic)
}
