package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"kinema/internal/detect"
	"kinema/internal/utils"
)

type DetectRequest struct {
	// base64编码的图片，支持data URL前缀
	Image string `json:"image" binding:"required,b64image"`
	// 是否检测身体姿态，默认true
	IncludeBody *bool `json:"include_body"`
	// 是否检测手部关键点，默认true
	IncludeHands *bool `json:"include_hands"`
	// 是否返回标注后的图片
	Draw bool `json:"draw"`
}

func (req *DetectRequest) options() detect.Options {
	opts := detect.Options{Body: true, Hands: true, Draw: req.Draw}
	if req.IncludeBody != nil {
		opts.Body = *req.IncludeBody
	}
	if req.IncludeHands != nil {
		opts.Hands = *req.IncludeHands
	}
	return opts
}

// handleDetect 图片姿态检测
// @Summary 图片姿态检测
// @Description 对base64编码的图片做人体姿态与手部关键点检测
// @Tags 检测
// @Accept json
// @Produce json
// @Param req body DetectRequest true "检测请求"
// @Success 200 {object} detect.Result "检测结果"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/detect [post]
func (s *Server) handleDetect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	img, err := utils.Base64ToMat(req.Image)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	defer img.Close()

	result := s.detector.Detect(c.Request.Context(), img, req.options())
	c.JSON(http.StatusOK, result)
}

// handleDetectUpload 上传图片姿态检测
// @Summary 上传图片姿态检测
// @Description 对上传的图片文件做人体姿态与手部关键点检测
// @Tags 检测
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "图片文件"
// @Param include_body formData bool false "是否检测身体姿态"
// @Param include_hands formData bool false "是否检测手部关键点"
// @Param draw formData bool false "是否返回标注后的图片"
// @Success 200 {object} detect.Result "检测结果"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/detect/upload [post]
func (s *Server) handleDetectUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("file is not a decodable image"))
		return
	}
	defer img.Close()

	opts := detect.Options{
		Body:  c.DefaultPostForm("include_body", "true") == "true",
		Hands: c.DefaultPostForm("include_hands", "true") == "true",
		Draw:  c.PostForm("draw") == "true",
	}

	result := s.detector.Detect(c.Request.Context(), img, opts)
	c.JSON(http.StatusOK, result)
}
