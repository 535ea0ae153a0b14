package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. Everything here is
// fixed at process start; nothing is mutable per request.
type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	ModelS3   ModelS3Config
	Upload    UploadConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// InferenceConfig holds classifier configuration.
type InferenceConfig struct {
	ModelPath   string
	LibraryPath string
	Device      string
}

// ModelS3Config points at an optional remote model artifact. When Bucket
// and Key are set the weights are fetched to ModelPath at startup.
type ModelS3Config struct {
	Bucket    string
	Key       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// UploadConfig holds request payload limits.
type UploadConfig struct {
	MaxBytes int64
}

// Load loads configuration from environment variables and .env files.
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "dev")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("MODEL_PATH", "models/voiceshield.onnx")
	viper.SetDefault("ONNX_LIB_PATH", "")
	viper.SetDefault("INFERENCE_DEVICE", "cpu")
	viper.SetDefault("MAX_UPLOAD_BYTES", int64(30*1024*1024))
	viper.SetDefault("MODEL_S3_BUCKET", "")
	viper.SetDefault("MODEL_S3_KEY", "")
	viper.SetDefault("MODEL_S3_ENDPOINT", "")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "")

	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	// Try to read .env file for the current environment
	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // file may not exist

	// Environment variables override .env file values
	viper.AutomaticEnv()

	viper.BindEnv("PORT")
	viper.BindEnv("ENVIRONMENT")
	viper.BindEnv("ALLOWED_ORIGINS")
	viper.BindEnv("MODEL_PATH")
	viper.BindEnv("ONNX_LIB_PATH")
	viper.BindEnv("INFERENCE_DEVICE")
	viper.BindEnv("MAX_UPLOAD_BYTES")
	viper.BindEnv("MODEL_S3_BUCKET")
	viper.BindEnv("MODEL_S3_KEY")
	viper.BindEnv("MODEL_S3_ENDPOINT")
	viper.BindEnv("AWS_REGION")
	viper.BindEnv("AWS_ACCESS_KEY_ID")
	viper.BindEnv("AWS_SECRET_ACCESS_KEY")

	var config Config
	config.Server.Port = viper.GetString("PORT")
	config.Server.Env = viper.GetString("ENVIRONMENT")
	config.Server.AllowedOrigins = strings.Split(viper.GetString("ALLOWED_ORIGINS"), ",")
	config.Inference.ModelPath = viper.GetString("MODEL_PATH")
	config.Inference.LibraryPath = viper.GetString("ONNX_LIB_PATH")
	config.Inference.Device = strings.ToLower(viper.GetString("INFERENCE_DEVICE"))
	config.Upload.MaxBytes = viper.GetInt64("MAX_UPLOAD_BYTES")
	config.ModelS3.Bucket = viper.GetString("MODEL_S3_BUCKET")
	config.ModelS3.Key = viper.GetString("MODEL_S3_KEY")
	config.ModelS3.Endpoint = viper.GetString("MODEL_S3_ENDPOINT")
	config.ModelS3.Region = viper.GetString("AWS_REGION")
	config.ModelS3.AccessKey = viper.GetString("AWS_ACCESS_KEY_ID")
	config.ModelS3.SecretKey = viper.GetString("AWS_SECRET_ACCESS_KEY")

	return &config, nil
}
