// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pliego-extract-go/internal/service"
	"pliego-extract-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ExtractHandler 处理元数据抽取请求。
type ExtractHandler struct {
	extractionService service.ExtractionService
	maxUploadBytes    int64
}

// NewExtractHandler 创建一个新的 ExtractHandler 实例。maxUploadMB <= 0 表示不限制上传大小。
func NewExtractHandler(extractionService service.ExtractionService, maxUploadMB int64) *ExtractHandler {
	return &ExtractHandler{
		extractionService: extractionService,
		maxUploadBytes:    maxUploadMB << 20,
	}
}

// ExtractMetadata 根据 Content-Type 分派：multipart 表单按 parquet 表格处理，其余按 JSON 文本处理。
func (h *ExtractHandler) ExtractMetadata(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.extractTable(c)
		return
	}
	h.extractText(c)
}

func (h *ExtractHandler) extractText(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		log.Warnf("[ExtractHandler] 请求体不是有效的 JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input. Provide a valid 'text' field."})
		return
	}
	var text string
	raw, ok := body["text"]
	if !ok || strings.TrimSpace(string(raw)) == "null" || json.Unmarshal(raw, &text) != nil {
		log.Warnf("[ExtractHandler] 缺少有效的 text 字段")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input. Provide a valid 'text' field."})
		return
	}

	categories, err := h.extractionService.ExtractText(c.Request.Context(), text)
	if err != nil {
		if service.IsClientError(err) {
			log.Warnf("[ExtractHandler] 文本无法抽取: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[ExtractHandler] 抽取失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *ExtractHandler) extractTable(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded. Provide a 'file' field."})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("[ExtractHandler] 打开上传文件失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read uploaded file"})
		return
	}
	defer file.Close()

	log.Infof("[ExtractHandler] 收到表格文件: %s (%d bytes)", fileHeader.Filename, fileHeader.Size)
	results, err := h.extractionService.ExtractTable(c.Request.Context(), file, fileHeader.Size)
	if err != nil {
		if service.IsClientError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[ExtractHandler] 表格抽取失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

// Healthz 返回服务存活状态。
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
