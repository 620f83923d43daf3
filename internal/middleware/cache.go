package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// WithResponseMeta attaches a metadata map to the request that handlers
// can enrich and hand to the response envelope. Processing time is
// filled in automatically once the handler chain returns.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]any{})
		c.Next()

		meta := metaFor(c)
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit marks whether the response was served from the review
// queue cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c)["cache_hit"] = hit
}

// ExtractMeta returns the metadata accumulated for this request, or nil
// when WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]any {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]any); ok {
			return meta
		}
	}
	return nil
}

func metaFor(c *gin.Context) map[string]any {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := map[string]any{}
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
