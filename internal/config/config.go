package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Configs struct {
	// App configuration
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	AppPort               int     `mapstructure:"app_port"`
	TelegrafAddress       string  `mapstructure:"telegraf_address"`

	// MySQL configuration
	MysqlDbName         string `mapstructure:"mysql_db_name"`
	MysqlMasterHost     string `mapstructure:"mysql_master_host"`
	MysqlMasterPort     int    `mapstructure:"mysql_master_port"`
	MysqlMasterUsername string `mapstructure:"mysql_master_username"`
	MysqlMasterPassword string `mapstructure:"mysql_master_password"`

	// Models
	OnnxruntimeSharedLibraryPath string `mapstructure:"onnxruntime_shared_library_path"`
	AmlModelPath                 string `mapstructure:"aml_model_path"`
	AmlMetadataPath              string `mapstructure:"aml_metadata_path"`
	AllModelPath                 string `mapstructure:"all_model_path"`
	AllMetadataPath              string `mapstructure:"all_metadata_path"`

	// Analysis
	FusionAmlThreshold float64 `mapstructure:"fusion_aml_threshold"`
	FusionAllThreshold float64 `mapstructure:"fusion_all_threshold"`
	HeatmapBackend     string  `mapstructure:"heatmap_backend"`
	ImageDir           string  `mapstructure:"image_dir"`
	ImageUrlPrefix     string  `mapstructure:"image_url_prefix"`
	MaxUploadBytes     int64   `mapstructure:"max_upload_bytes"`

	// Auth and caching
	AuthEnabled        bool   `mapstructure:"auth_enabled"`
	JwtSecret          string `mapstructure:"jwt_secret"`
	CacheSizeBytes     int    `mapstructure:"cache_size_bytes"`
	PdfCacheTtlSeconds int    `mapstructure:"pdf_cache_ttl_seconds"`
}

var defaults = map[string]interface{}{
	"app_name":                        "leuko-api",
	"app_env":                         "local",
	"app_log_level":                   "INFO",
	"app_metric_sampling_rate":        1.0,
	"app_port":                        5000,
	"telegraf_address":                "localhost:8125",
	"mysql_db_name":                   "deepleuko_db",
	"mysql_master_host":               "localhost",
	"mysql_master_port":               3306,
	"mysql_master_username":           "root",
	"mysql_master_password":           "",
	"onnxruntime_shared_library_path": "",
	"aml_model_path":                  "models/aml_resnet50.onnx",
	"aml_metadata_path":               "models/aml_resnet50.yaml",
	"all_model_path":                  "models/hybrid_all.onnx",
	"all_metadata_path":               "models/hybrid_all.yaml",
	"fusion_aml_threshold":            0.6,
	"fusion_all_threshold":            0.6,
	"heatmap_backend":                 "default",
	"image_dir":                       "static/images",
	"image_url_prefix":                "/static/images",
	"max_upload_bytes":                10 << 20,
	"auth_enabled":                    false,
	"jwt_secret":                      "",
	"cache_size_bytes":                32 << 20,
	"pdf_cache_ttl_seconds":           3600,
}

// Load reads configuration from the environment. APP_PORT maps to app_port
// and so on; unset keys keep their defaults.
func Load() (*Configs, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Configs
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values and ranges.
func Validate(cfg *Configs) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.AppPort <= 0 || cfg.AppPort > 65535 {
		return fmt.Errorf("app_port must be in 1..65535, got %d", cfg.AppPort)
	}
	for name, path := range map[string]string{
		"aml_model_path":    cfg.AmlModelPath,
		"aml_metadata_path": cfg.AmlMetadataPath,
		"all_model_path":    cfg.AllModelPath,
		"all_metadata_path": cfg.AllMetadataPath,
		"image_dir":         cfg.ImageDir,
	} {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if err := validateThreshold("fusion_aml_threshold", cfg.FusionAmlThreshold); err != nil {
		return err
	}
	if err := validateThreshold("fusion_all_threshold", cfg.FusionAllThreshold); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.MysqlMasterHost) == "" || strings.TrimSpace(cfg.MysqlDbName) == "" {
		return fmt.Errorf("mysql_master_host and mysql_db_name must be set")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if cfg.AuthEnabled && strings.TrimSpace(cfg.JwtSecret) == "" {
		return fmt.Errorf("jwt_secret must be set when auth_enabled is true")
	}
	return nil
}

func validateThreshold(name string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be in (0,1], got %v", name, v)
	}
	return nil
}
