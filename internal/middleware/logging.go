// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody 限制日志中记录的请求/响应体长度。
const maxLoggedBody = 2048

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// peekedBody 先返回已读取的前缀，再读取剩余的原始请求体。
type peekedBody struct {
	io.Reader
	io.Closer
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志并统计请求数。
// 只读取请求体的前 maxLoggedBody 字节用于日志，multipart 请求体不会被读取。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			body := c.Request.Body
			requestBody, _ = io.ReadAll(io.LimitReader(body, maxLoggedBody))
			// 将读取的前缀拼回 c.Request.Body，以便后续处理函数可以完整读取
			c.Request.Body = peekedBody{Reader: io.MultiReader(bytes.NewReader(requestBody), body), Closer: body}
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()

		log.Infow("HTTP Request Log",
			"statusCode", statusCode,
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", string(requestBody),
			"responseBody", blw.body.String(),
		)
	}
}
