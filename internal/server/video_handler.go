package server

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedVideoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
}

type VideoUploadResponse struct {
	TaskId string `json:"task_id"`
	// 任务创建后即返回，处理在后台进行
	Status string `json:"status"`
}

// handleVideoUpload 上传视频创建处理任务
// @Summary 上传视频创建处理任务
// @Description 上传视频文件，创建后台姿态标注任务并立即返回任务ID
// @Tags 视频
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "视频文件"
// @Success 200 {object} VideoUploadResponse "任务已创建"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Failure 500 {object} ErrorResponse "内部服务器错误"
// @Router /api/v1/video/upload [post]
func (s *Server) handleVideoUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedVideoExts[ext] {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("unsupported video format %s", ext))
		return
	}

	localName := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	localPath := path.Join(s.conf.UploadDir, localName)
	if err := c.SaveUploadedFile(fileHeader, localPath); err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}

	task, err := s.videoMgr.CreateTask(fileHeader.Filename, localPath)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, VideoUploadResponse{
		TaskId: task.ID,
		Status: string(task.GetStatus()),
	})
}

// handleGetVideoTask 查询任务状态
// @Summary 查询任务状态
// @Description 根据task_id查询视频处理任务的进度与状态
// @Tags 视频
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 {object} video.Snapshot "任务状态"
// @Failure 404 {object} ErrorResponse "任务不存在"
// @Router /api/v1/video/task/{task_id} [get]
func (s *Server) handleGetVideoTask(c *gin.Context) {
	snapshot := s.videoMgr.GetStatus(c.Param("task_id"))
	if snapshot == nil {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("task not found"))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleListVideoTasks 任务列表
// @Summary 任务列表
// @Description 列出所有视频处理任务及各状态数量统计
// @Tags 视频
// @Produce json
// @Success 200 {object} video.TaskList "任务列表"
// @Router /api/v1/video/tasks [get]
func (s *Server) handleListVideoTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.videoMgr.ListTasks())
}

// handleDownloadVideoResult 下载处理结果
// @Summary 下载处理结果
// @Description 下载已完成任务的标注视频文件
// @Tags 视频
// @Produce octet-stream
// @Param task_id path string true "任务ID"
// @Success 200 {file} file "视频文件"
// @Failure 404 {object} ErrorResponse "任务不存在或未完成"
// @Router /api/v1/video/task/{task_id}/download [get]
func (s *Server) handleDownloadVideoResult(c *gin.Context) {
	task := s.videoMgr.GetTask(c.Param("task_id"))
	if task == nil {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("task not found"))
		return
	}
	snapshot := task.Snapshot()
	if snapshot.OutputFile == "" {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("task result not available"))
		return
	}
	c.FileAttachment(snapshot.OutputFile, filepath.Base(snapshot.OutputFile))
}

// handlePauseVideoTask 暂停任务
// @Summary 暂停任务
// @Description 在下一帧检查点暂停一个正在处理的任务
// @Tags 视频
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 "暂停成功"
// @Failure 400 {object} ErrorResponse "任务状态不允许暂停"
// @Router /api/v1/video/task/{task_id}/pause [put]
func (s *Server) handlePauseVideoTask(c *gin.Context) {
	if err := s.videoMgr.Pause(c.Param("task_id")); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// handleResumeVideoTask 恢复任务
// @Summary 恢复任务
// @Description 恢复一个已暂停的任务
// @Tags 视频
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 "恢复成功"
// @Failure 400 {object} ErrorResponse "任务状态不允许恢复"
// @Router /api/v1/video/task/{task_id}/resume [put]
func (s *Server) handleResumeVideoTask(c *gin.Context) {
	if err := s.videoMgr.Resume(c.Param("task_id")); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// handleDeleteVideoTask 删除任务
// @Summary 删除任务
// @Description 删除任务记录及其输入输出文件，运行中的任务不能删除
// @Tags 视频
// @Produce json
// @Param task_id path string true "任务ID"
// @Success 200 "删除成功"
// @Failure 400 {object} ErrorResponse "任务正在运行"
// @Failure 404 {object} ErrorResponse "任务不存在"
// @Router /api/v1/video/task/{task_id} [delete]
func (s *Server) handleDeleteVideoTask(c *gin.Context) {
	if err := s.videoMgr.Delete(c.Param("task_id")); err != nil {
		code := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			code = http.StatusNotFound
		}
		s.writeError(c, code, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// handleCleanupVideoTasks 清理过期任务
// @Summary 清理过期任务
// @Description 删除开始时间早于max_age_hours的已结束任务
// @Tags 视频
// @Produce json
// @Param max_age_hours query int false "最大保留小时数" default(24)
// @Success 200 {object} map[string]int "清理数量"
// @Router /api/v1/video/cleanup [post]
func (s *Server) handleCleanupVideoTasks(c *gin.Context) {
	maxAgeHours, err := strconv.Atoi(c.DefaultQuery("max_age_hours", "24"))
	if err != nil || maxAgeHours <= 0 {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("invalid max_age_hours"))
		return
	}
	removed := s.videoMgr.CleanupOldTasks(time.Duration(maxAgeHours) * time.Hour)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
