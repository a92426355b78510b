package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"kinema/internal/config"
	"kinema/internal/detect"
	"kinema/internal/infer"
	"kinema/internal/pose"
	"kinema/internal/utils"
)

var (
	detectImagePath  string
	detectOutputPath string
	detectHands      bool
)

var detectCommand = &cobra.Command{
	Use:   "detect",
	Short: "Run pose detection on a single image",
	Run: func(cmd *cobra.Command, args []string) {
		runDetect()
	},
}

func init() {
	detectCommand.Flags().StringVarP(&detectImagePath, "image", "i", "", "Path to input image")
	detectCommand.Flags().StringVarP(&detectOutputPath, "output", "o", "", "Path to write the annotated image")
	detectCommand.Flags().BoolVar(&detectHands, "hands", true, "Detect hand keypoints")
	detectCommand.MarkFlagRequired("image")
}

func runDetect() {
	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}

	img := gocv.IMRead(detectImagePath, gocv.IMReadColor)
	if img.Empty() {
		logrus.Fatalf("cannot read image %s", detectImagePath)
	}
	defer img.Close()

	ctx := context.Background()
	tritonCli, err := infer.NewClient(&conf.Triton)
	if err != nil {
		logrus.Fatalf("connect triton error, %s", err.Error())
	}
	if err := infer.CheckReady(ctx, tritonCli, &conf.Triton); err != nil {
		logrus.Fatalf("triton not ready, %s", err.Error())
	}

	detector := detect.NewService(
		pose.NewBodyEstimator(infer.NewTritonBodyNet(tritonCli, conf.Triton.BodyModelName)),
		pose.NewHandEstimator(infer.NewTritonHandNet(tritonCli, conf.Triton.HandModelName)),
		conf.Triton.ServerAddr,
	)

	result := detector.Detect(ctx, img, detect.Options{
		Body:  true,
		Hands: detectHands,
		Draw:  detectOutputPath != "",
	})
	if !result.Success {
		logrus.Fatalf("detection failed: %s", result.Error)
	}

	if detectOutputPath != "" && result.ResultImage != "" {
		annotated, err := utils.Base64ToMat(result.ResultImage)
		if err != nil {
			logrus.Fatalf("decode result image, %s", err.Error())
		}
		defer annotated.Close()
		if !gocv.IMWrite(detectOutputPath, annotated) {
			logrus.Fatalf("write annotated image to %s failed", detectOutputPath)
		}
		result.ResultImage = ""
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logrus.Fatalf("marshal result, %s", err.Error())
	}
	fmt.Println(strings.TrimSpace(string(out)))
	os.Exit(0)
}
