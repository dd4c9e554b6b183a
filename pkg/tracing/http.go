package tracing

import (
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-set/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// untracedPaths are hit by health checks and metric scrapes.
var untracedPaths = set.From([]string{"/health", "/metrics"})

// GinMiddleware traces admin API requests with spans named after the matched
// route template, e.g. "DELETE /api/v1/rules/:id".
func GinMiddleware(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	base := []otelgin.Option{
		otelgin.WithGinFilter(traced),
		otelgin.WithSpanNameFormatter(routeSpanName),
	}
	return otelgin.Middleware(serviceName, append(base, opts...)...)
}

func traced(c *gin.Context) bool {
	return !untracedPaths.Contains(c.Request.URL.Path)
}

func routeSpanName(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return c.Request.Method + " unmatched route"
	}
	return c.Request.Method + " " + route
}
