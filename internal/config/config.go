package config

type TritonConfig struct {
	ServerAddr    string `yaml:"serverAddr"`
	BodyModelName string `yaml:"bodyModelName"`
	HandModelName string `yaml:"handModelName"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Region          string `yaml:"region"`
}

type NSQConfig struct {
	Addr  string `yaml:"addr"`
	Topic string `yaml:"topic"`
}

type PerfConfig struct {
	CPUHigh             float64 `yaml:"cpuHigh"`
	CPUCritical         float64 `yaml:"cpuCritical"`
	MemoryHigh          float64 `yaml:"memoryHigh"`
	MemoryCritical      float64 `yaml:"memoryCritical"`
	SleepIntervalMs     int     `yaml:"sleepIntervalMs"`
	BusySleepIntervalMs int     `yaml:"busySleepIntervalMs"`
}

type Config struct {
	Addr      string       `yaml:"addr"`
	SSLCert   string       `yaml:"sslCert"`
	SSLKey    string       `yaml:"sslKey"`
	Triton    TritonConfig `yaml:"triton"`
	UploadDir string       `yaml:"uploadDir"`
	ResultDir string       `yaml:"resultDir"`
	TaskDBDir string       `yaml:"taskDBDir"`
	Perf      PerfConfig   `yaml:"perf"`
	S3        *S3Config    `yaml:"s3"`
	NSQ       *NSQConfig   `yaml:"nsq"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr: "127.0.0.1:8080",
		Triton: TritonConfig{
			ServerAddr:    "127.0.0.1:8001",
			BodyModelName: "body_pose",
			HandModelName: "hand_pose",
		},
		UploadDir: "uploads",
		ResultDir: "results",
		TaskDBDir: "taskdb",
		Perf: PerfConfig{
			CPUHigh:             80.0,
			CPUCritical:         95.0,
			MemoryHigh:          75.0,
			MemoryCritical:      90.0,
			SleepIntervalMs:     5,
			BusySleepIntervalMs: 20,
		},
	}
}
