package handler

import (
	"pliego-extract-go/internal/middleware"
	"pliego-extract-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 创建路由引擎并注册所有路由。
func NewRouter(extractionService service.ExtractionService, maxUploadMB int64) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	if maxUploadMB > 0 {
		r.MaxMultipartMemory = maxUploadMB << 20
	}

	r.POST("/extract_metadata", NewExtractHandler(extractionService, maxUploadMB).ExtractMetadata)
	r.GET("/healthz", Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
