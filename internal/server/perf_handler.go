package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinema/internal/version"
)

// handleHealthz 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string "ok"
// @Router /healthz [get]
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "ok",
		"version": version.VERSION,
	})
}

// handlePerfStatus 系统负载状态
// @Summary 系统负载状态
// @Description 返回当前CPU与内存采样、负载等级及处理节奏建议
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]any "当前负载"
// @Router /api/v1/performance/status [get]
func (s *Server) handlePerfStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"current":         s.monitor.Current(),
		"status":          s.monitor.CurrentStatus(),
		"recommendations": s.monitor.GetRecommendations(),
	})
}

// handlePerfHistory 系统负载历史
// @Summary 系统负载历史
// @Description 返回最近60秒的CPU与内存采样
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]any "采样历史"
// @Router /api/v1/performance/history [get]
func (s *Server) handlePerfHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"history": s.monitor.History(),
	})
}
