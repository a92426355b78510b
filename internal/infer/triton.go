package infer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Trendyol/go-triton-client/base"
	tritonGrpc "github.com/Trendyol/go-triton-client/client/grpc"

	"kinema/internal/config"
	"kinema/internal/pose"
)

// NewClient dials the Triton inference server over gRPC.
func NewClient(conf *config.TritonConfig) (base.Client, error) {
	return tritonGrpc.NewClient(
		conf.ServerAddr,
		false, // verbose logging
		30,    // connection timeout in seconds
		30,    // network timeout in seconds
		false, // use SSL
		true,  // insecure connection
		nil,   // existing gRPC connection
		nil,   // logger
	)
}

// CheckReady verifies the server is live and both pose models are loaded.
func CheckReady(ctx context.Context, cli base.Client, conf *config.TritonConfig) error {
	if isLive, err := cli.IsServerLive(ctx, nil); err != nil {
		return err
	} else if !isLive {
		return errors.New("triton server is not live")
	}

	if isReady, err := cli.IsServerReady(ctx, nil); err != nil {
		return err
	} else if !isReady {
		return errors.New("triton server is not ready")
	}

	for _, model := range []string{conf.BodyModelName, conf.HandModelName} {
		if isReady, err := cli.IsModelReady(ctx, model, "1", nil); err != nil {
			return err
		} else if !isReady {
			return fmt.Errorf("triton model %s is not ready", model)
		}
	}
	return nil
}

// TritonBodyNet runs the body pose model on a Triton server. The model takes a
// planar float32 BGR tensor and emits the part affinity field and the part
// heatmap at 1/8 input resolution.
type TritonBodyNet struct {
	cli       base.Client
	modelName string
}

func NewTritonBodyNet(cli base.Client, modelName string) *TritonBodyNet {
	return &TritonBodyNet{cli: cli, modelName: modelName}
}

func (n *TritonBodyNet) Forward(ctx context.Context, input *pose.FieldMap) (*pose.FieldMap, *pose.FieldMap, error) {
	response, err := infer(ctx, n.cli, n.modelName, input, "PAF", "HEATMAP")
	if err != nil {
		return nil, nil, err
	}

	outW, outH := input.W/pose.Stride, input.H/pose.Stride

	paf, err := outputFieldMap(response, "PAF", outW, outH, 2*pose.NumLimbs)
	if err != nil {
		return nil, nil, err
	}
	heat, err := outputFieldMap(response, "HEATMAP", outW, outH, pose.NumBodyParts+1)
	if err != nil {
		return nil, nil, err
	}
	return paf, heat, nil
}

// TritonHandNet runs the hand keypoint model on a Triton server.
type TritonHandNet struct {
	cli       base.Client
	modelName string
}

func NewTritonHandNet(cli base.Client, modelName string) *TritonHandNet {
	return &TritonHandNet{cli: cli, modelName: modelName}
}

func (n *TritonHandNet) Forward(ctx context.Context, input *pose.FieldMap) (*pose.FieldMap, error) {
	response, err := infer(ctx, n.cli, n.modelName, input, "HEATMAP")
	if err != nil {
		return nil, err
	}
	return outputFieldMap(response, "HEATMAP", input.W/pose.Stride, input.H/pose.Stride, pose.NumHandParts+1)
}

func infer(ctx context.Context, cli base.Client, modelName string, input *pose.FieldMap, outputNames ...string) (base.InferResult, error) {
	tensor := tritonGrpc.NewInferInput("INPUT", "FP32",
		[]int64{1, int64(input.C), int64(input.H), int64(input.W)}, nil)
	if err := tensor.SetData(input.Data, true); err != nil {
		return nil, fmt.Errorf("failed to set INPUT data: %v", err)
	}

	var outputs []base.InferOutput
	for _, name := range outputNames {
		outputs = append(outputs, tritonGrpc.NewInferOutput(name, map[string]any{"binary_data": false}))
	}

	response, err := cli.Infer(
		ctx,
		modelName,
		"1",
		[]base.InferInput{tensor},
		outputs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %v", err)
	}
	return response, nil
}

func outputFieldMap(response base.InferResult, name string, w, h, c int) (*pose.FieldMap, error) {
	data, err := response.AsFloat32Slice(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s output data: %v", name, err)
	}
	if len(data) != w*h*c {
		return nil, fmt.Errorf("unexpected %s output size %d, want %d (%dx%dx%d)",
			name, len(data), w*h*c, c, h, w)
	}
	fm := pose.NewFieldMap(w, h, c)
	copy(fm.Data, data)
	return fm, nil
}
