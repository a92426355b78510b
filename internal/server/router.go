package server

import (
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (s *Server) SetUpRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestId())
	router.Use(Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealthz)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	apiV1 := router.Group("/api/v1")
	s.SetUpApiV1Router(apiV1)

	return router
}

func (s *Server) SetUpApiV1Router(apiV1 *gin.RouterGroup) {
	apiV1.POST("/detect", s.handleDetect)
	apiV1.POST("/detect/upload", s.handleDetectUpload)

	apiV1.GET("/realtime", s.handleRealtime)

	{
		v1Video := apiV1.Group("/video")
		v1Video.POST("/upload", s.handleVideoUpload)
		v1Video.GET("/tasks", s.handleListVideoTasks)
		v1Video.GET("/task/:task_id", s.handleGetVideoTask)
		v1Video.GET("/task/:task_id/download", s.handleDownloadVideoResult)
		v1Video.PUT("/task/:task_id/pause", s.handlePauseVideoTask)
		v1Video.PUT("/task/:task_id/resume", s.handleResumeVideoTask)
		v1Video.DELETE("/task/:task_id", s.handleDeleteVideoTask)
		v1Video.POST("/cleanup", s.handleCleanupVideoTasks)
	}

	{
		v1Perf := apiV1.Group("/performance")
		v1Perf.GET("/status", s.handlePerfStatus)
		v1Perf.GET("/history", s.handlePerfHistory)
	}
}
