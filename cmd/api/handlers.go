package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/z-wentao/voicedub/pkg/apperror"
	"github.com/z-wentao/voicedub/pkg/config"
	"github.com/z-wentao/voicedub/pkg/metrics"
	"github.com/z-wentao/voicedub/pkg/models"
)

// multipartSlack multipart 边界和其它字段的额外空间
const multipartSlack = 1 << 20

// multipartMemory 超出部分由 net/http 写到临时文件
const multipartMemory = 32 << 20

// Translator 执行一次翻译请求
type Translator interface {
	Run(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error)
}

// App 应用上下文
type App struct {
	config     *config.Config
	translator Translator
	metrics    *metrics.Metrics
}

// setupRouter 设置路由
func (app *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/translate", app.handleTranslate)
	r.GET("/translate", app.handleTranslateInfo)
	r.GET("/metrics", gin.WrapH(app.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.POST("/translate", app.handleTranslate)
		api.GET("/translate", app.handleTranslateInfo)
	}

	return r
}

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": "1.0.0",
	})
}

// translateResponse 成功响应
type translateResponse struct {
	Success bool `json:"success"`
	*models.TranslationResult
}

// handleTranslate 上传文件或视频链接 → 翻译 → 配音
func (app *App) handleTranslate(c *gin.Context) {
	req, err := app.parseRequest(c)
	if err != nil {
		app.writeError(c, err)
		return
	}

	result, err := app.translator.Run(c.Request.Context(), req)
	if err != nil {
		app.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, translateResponse{Success: true, TranslationResult: result})
}

// parseRequest 解析 multipart 表单：file / videoUrl / targetLanguage
func (app *App) parseRequest(c *gin.Context) (*models.TranslationRequest, error) {
	limit := app.config.Media.MaxFileSize + multipartSlack
	if c.Request.ContentLength > limit {
		return nil, apperror.Newf(apperror.KindPayloadTooLarge,
			"File too large. Maximum size: %dMB", app.config.Media.MaxFileSize/1024/1024)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.Newf(apperror.KindPayloadTooLarge,
				"File too large. Maximum size: %dMB", app.config.Media.MaxFileSize/1024/1024)
		}
		return nil, apperror.Wrap(apperror.KindInvalidInput, err, "Invalid form data")
	}

	req := &models.TranslationRequest{
		VideoURL:       c.PostForm("videoUrl"),
		TargetLanguage: c.PostForm("targetLanguage"),
	}

	header, err := c.FormFile("file")
	switch {
	case err == nil:
		req.File = &models.UploadedFile{
			Name:     header.Filename,
			MIMEType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, apperror.Wrap(apperror.KindInvalidInput, err, "Invalid file field")
	}

	return req, nil
}

// writeError 错误分类 → HTTP 响应
func (app *App) writeError(c *gin.Context, err error) {
	e, ok := apperror.As(err)
	if !ok {
		log.Printf("❌ 未分类错误: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"details":   err.Error(),
			"errorType": apperror.CategoryInternal,
		})
		return
	}

	switch category := e.Kind.Category(); category {
	case apperror.CategoryUpload, apperror.CategoryProcessing:
		c.JSON(e.StatusCode(), gin.H{
			"success":   false,
			"error":     e.Message,
			"errorType": category,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"details":   e.Message,
			"errorType": apperror.CategoryInternal,
		})
	}
}

// handleTranslateInfo 服务能力说明，无副作用
func (app *App) handleTranslateInfo(c *gin.Context) {
	gemini := app.config.Gemini
	c.JSON(http.StatusOK, gin.H{
		"status":  "operational",
		"message": "Gemini Video Translation API",
		"models": gin.H{
			"default":  gemini.DefaultModel,
			"fallback": gemini.FallbackModels,
		},
		"limits": gin.H{
			"maxFileSize":       fmt.Sprintf("%dMB", app.config.Media.MaxFileSize/1024/1024),
			"supportedFormats":  app.config.Media.SupportedVideoTypes,
			"processingTimeout": fmt.Sprintf("%ds", int(gemini.ProcessingTimeout().Seconds())),
		},
		"features": []string{
			"YouTube video support",
			"Direct URL video support",
			"File upload support",
			"Automatic timestamping",
			"Multi-language translation",
			"Dubbed audio generation",
		},
	})
}
