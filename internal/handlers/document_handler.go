package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"shipdesk/internal/services"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// 下载时的 Content-Type
var documentContentTypes = map[string]string{
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"csv":  "text/csv",
}

type DocumentHandler struct {
	service     *services.DocumentService
	maxFileSize int64
}

func NewDocumentHandler(service *services.DocumentService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{service: service, maxFileSize: maxFileSize}
}

// Upload 上传发货单（multipart: file, order_number, eta_date, container_number, notes, auto_parse）
func (h *DocumentHandler) Upload(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.FromError(c, apperrors.Validation("file", "file is required"), "请选择要上传的文件")
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.FromError(c, apperrors.Validation("file", "file is too large"), "文件大小超出限制")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, "读取文件失败")
		return
	}
	defer file.Close()

	limit := h.maxFileSize
	if limit <= 0 {
		limit = fileHeader.Size
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		response.ServerError(c, "读取文件失败")
		return
	}

	autoParse, _ := strconv.ParseBool(c.DefaultPostForm("auto_parse", "false"))
	input := services.UploadInput{
		FileName:        fileHeader.Filename,
		Data:            data,
		OrderNumber:     c.PostForm("order_number"),
		EtaDate:         c.PostForm("eta_date"),
		ContainerNumber: c.PostForm("container_number"),
		Notes:           c.PostForm("notes"),
		AutoParse:       autoParse,
	}

	doc, err := h.service.Upload(c.Request.Context(), scope, input)
	if err != nil {
		if doc != nil {
			// 文件已保存，解析失败
			response.ErrorWithData(c, apperrors.CodeOf(err), "上传成功，但解析失败", doc)
			return
		}
		replyError(c, err, "上传失败")
		return
	}
	response.SuccessWithMessage(c, "上传成功", doc)
}

// List 文档列表，支持 status、keyword 过滤
func (h *DocumentHandler) List(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	pageParams := pagination.ParsePageParams(c)

	docs, total, err := h.service.List(c.Request.Context(), scope, services.DocumentFilter{
		Status:  c.Query("status"),
		Keyword: c.Query("keyword"),
	}, pageParams)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, docs, pageInfo)
}

// Get 文档详情（含明细）
func (h *DocumentHandler) Get(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), scope, id)
	if err != nil {
		replyError(c, err, "文档不存在")
		return
	}
	response.Success(c, gin.H{
		"document":            doc,
		"formatted_file_size": doc.FormattedFileSize(),
	})
}

// Parse 解析文档
func (h *DocumentHandler) Parse(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	doc, result, err := h.service.Parse(c.Request.Context(), scope, id)
	if err != nil {
		replyError(c, err, "解析失败")
		return
	}
	response.SuccessWithMessage(c, "解析成功", gin.H{
		"document": doc,
		"result":   result,
	})
}

// Download 下载原始文件
func (h *DocumentHandler) Download(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	doc, reader, err := h.service.Download(c.Request.Context(), scope, id)
	if err != nil {
		replyError(c, err, "文件不存在")
		return
	}
	defer reader.Close()

	contentType, ok := documentContentTypes[doc.FileType]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.FileSize, contentType, reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}),
	})
}

// Delete 删除文档及文件
func (h *DocumentHandler) Delete(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), scope, id); err != nil {
		replyError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
