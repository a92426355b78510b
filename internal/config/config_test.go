package config

import (
	"os"
	"path"
	"testing"
)

func TestInitConfigOverridesDefaults(t *testing.T) {
	content := `
addr: 0.0.0.0:9090
triton:
  serverAddr: triton:8001
  bodyModelName: body_v2
resultDir: /data/results
perf:
  cpuHigh: 70
nsq:
  addr: nsq:4150
  topic: pose.events
`
	file := path.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	conf, err := InitConfig(file)
	if err != nil {
		t.Fatal(err)
	}

	if conf.Addr != "0.0.0.0:9090" {
		t.Errorf("addr %q", conf.Addr)
	}
	if conf.Triton.ServerAddr != "triton:8001" || conf.Triton.BodyModelName != "body_v2" {
		t.Errorf("triton config %+v", conf.Triton)
	}
	// Unset keys keep their defaults.
	if conf.Triton.HandModelName != "hand_pose" {
		t.Errorf("hand model %q, expected default", conf.Triton.HandModelName)
	}
	if conf.UploadDir != "uploads" {
		t.Errorf("upload dir %q, expected default", conf.UploadDir)
	}
	if conf.ResultDir != "/data/results" {
		t.Errorf("result dir %q", conf.ResultDir)
	}
	if conf.Perf.CPUHigh != 70 {
		t.Errorf("cpuHigh %f", conf.Perf.CPUHigh)
	}
	if conf.NSQ == nil || conf.NSQ.Topic != "pose.events" {
		t.Errorf("nsq config %+v", conf.NSQ)
	}
	if conf.S3 != nil {
		t.Errorf("s3 config %+v, expected nil", conf.S3)
	}
}

func TestInitConfigMissingFile(t *testing.T) {
	if _, err := InitConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
