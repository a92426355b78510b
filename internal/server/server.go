package server

import (
	"context"
	"encoding/base64"
	goerrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	_ "kinema/docs"
	"kinema/internal/config"
	"kinema/internal/detect"
	"kinema/internal/perf"
	"kinema/internal/video"
	"kinema/pkg/log"
)

const httpXRequestId = "X-Request-Id"

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	detector   *detect.Service
	videoMgr   *video.Manager
	monitor    *perf.Monitor
	logger     *logrus.Entry
}

func NewServer(ctx context.Context, conf *config.Config, detector *detect.Service, videoMgr *video.Manager, monitor *perf.Monitor) (*Server, error) {
	s := &Server{
		conf:     conf,
		detector: detector,
		videoMgr: videoMgr,
		monitor:  monitor,
		logger:   log.GetLogger(ctx),
	}

	return s, nil
}

func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(httpXRequestId)
		if requestId == "" {
			requestId = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Header(httpXRequestId, requestId)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		latency := time.Since(t)
		status := c.Writer.Status()

		logrus.Info("ip: ", c.ClientIP(), " method: ", c.Request.Method, " path: ",
			c.Request.URL.Path, " status: ", status, " latency: ", latency)
	}
}

func (s *Server) Start() {
	gin.SetMode(gin.ReleaseMode)
	router := s.SetUpRouter()
	pprof.Register(router)
	s.httpServer = &http.Server{
		Addr:    s.conf.Addr,
		Handler: router,
	}

	var err error
	if s.conf.SSLCert != "" && s.conf.SSLKey != "" {
		logrus.Infof("start https server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServeTLS(s.conf.SSLCert, s.conf.SSLKey)
	} else {
		logrus.Infof("start http server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		logrus.Fatal(err)
	}
}

func (s *Server) Shutdown() {
	err := s.httpServer.Shutdown(context.Background())
	if err != nil {
		logrus.Fatalf("server forced to shutdown: %v", err)
	}
}

type ErrorResponse struct {
	// 错误信息
	Error string `json:"error"`
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
	})
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("b64image", func(fl validator.FieldLevel) bool {
			payload := fl.Field().String()
			if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
				payload = payload[idx+1:]
			}
			if payload == "" || len(payload)%4 != 0 {
				return false
			}
			// Decoding just the head is enough to reject non-base64 input
			// without paying for the full image.
			head := payload
			if len(head) > 64 {
				head = head[:64-64%4]
			}
			_, err := base64.StdEncoding.DecodeString(head)
			return err == nil
		})
	}
}
