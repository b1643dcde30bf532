package models

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr    string `yaml:"server_addr"`
	DatabaseURL   string `yaml:"database_url"`
	KafkaBroker   string `yaml:"kafka_broker"`
	KafkaTopic    string `yaml:"kafka_topic"`
	DataDir       string `yaml:"data_dir"`
	BackgroundDir string `yaml:"background_dir"`
	WatermarkText string `yaml:"watermark_text"`
	RembgURL      string `yaml:"rembg_url"`
	RembgModel    string `yaml:"rembg_model"`
	Workers       int    `yaml:"workers"`
	QueueSize     int    `yaml:"queue_size"`
	S3Bucket      string `yaml:"s3_bucket"`
}

// LoadConfig reads the yaml config and then lets environment variables win,
// loading a local .env first if one exists.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideStr(&cfg.ServerAddr, "SERVER_ADDR")
	overrideStr(&cfg.DatabaseURL, "DATABASE_URL")
	overrideStr(&cfg.KafkaBroker, "KAFKA_BROKER")
	overrideStr(&cfg.KafkaTopic, "KAFKA_TOPIC")
	overrideStr(&cfg.DataDir, "DATA_DIR")
	overrideStr(&cfg.BackgroundDir, "BACKGROUND_DIR")
	overrideStr(&cfg.WatermarkText, "WATERMARK_TEXT")
	overrideStr(&cfg.RembgURL, "REMBG_URL")
	overrideStr(&cfg.RembgModel, "RMBG_MODEL")
	overrideInt(&cfg.Workers, "MAX_WORKERS")
	overrideInt(&cfg.QueueSize, "QUEUE_SIZE")
	overrideStr(&cfg.S3Bucket, "S3_BUCKET")

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.RembgModel == "" {
		cfg.RembgModel = "u2net"
	}
	if cfg.WatermarkText == "" {
		cfg.WatermarkText = "aucto.ch"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	return &cfg, nil
}

func overrideStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
