package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kinema/internal/config"
	"kinema/internal/detect"
	"kinema/internal/infer"
	"kinema/internal/perf"
	"kinema/internal/pose"
	"kinema/internal/server"
	"kinema/internal/video"
	"kinema/pkg/log"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start kinema server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func runServe() {
	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}

	logrus.Infof("config: %+v", conf)

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	logger := log.GetLogger(ctx)

	tritonCli, err := infer.NewClient(&conf.Triton)
	if err != nil {
		logrus.Fatalf("connect triton error, %s", err.Error())
	}
	if err := infer.CheckReady(ctx, tritonCli, &conf.Triton); err != nil {
		logger.WithError(err).Warn("triton not ready yet, continuing startup")
	}

	detector := detect.NewService(
		pose.NewBodyEstimator(infer.NewTritonBodyNet(tritonCli, conf.Triton.BodyModelName)),
		pose.NewHandEstimator(infer.NewTritonHandNet(tritonCli, conf.Triton.HandModelName)),
		conf.Triton.ServerAddr,
	)

	monitor := perf.NewMonitor(&conf.Perf)
	monitor.Start()
	defer monitor.Stop()

	opts := video.ManagerOptions{}

	store, err := video.NewTaskStore(conf.TaskDBDir, logger)
	if err != nil {
		logrus.Fatalf("open task store error, %s", err.Error())
	}
	defer store.Close()
	opts.Store = store

	if conf.NSQ != nil {
		producer, err := nsq.NewProducer(conf.NSQ.Addr, nsq.NewConfig())
		if err != nil {
			logrus.Fatalf("create NSQ producer error, %s", err.Error())
		}
		defer producer.Stop()
		opts.NSQProducer = producer
	}

	if conf.S3 != nil {
		s3Cli, err := minio.New(conf.S3.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(conf.S3.AccessKeyID, conf.S3.SecretAccessKey, ""),
			Secure: conf.S3.UseSSL,
			Region: conf.S3.Region,
		})
		if err != nil {
			logrus.Fatalf("create minio client error, %s", err.Error())
		}
		opts.S3Client = s3Cli
	}

	videoMgr, err := video.NewManager(conf, detector, monitor, opts)
	if err != nil {
		logrus.Fatalf("create video manager error, %s", err.Error())
	}
	defer videoMgr.Stop()

	if err := videoMgr.Rehydrate(); err != nil {
		logger.WithError(err).Error("rehydrate tasks failed")
	}

	srv, err := server.NewServer(ctx, conf, detector, videoMgr, monitor)
	if err != nil {
		logrus.Fatalf("newServer error, %s", err.Error())
	}
	go srv.Start()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	logrus.Infof("server is shutting down...")
	srv.Shutdown()
}
