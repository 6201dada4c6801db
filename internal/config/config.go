package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 数据库配置，Driver 取值 mysql（生产）或 sqlite（本地/测试）
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// MySQLDSN 拼接 MySQL 连接串
func (c DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type MediaConfig struct {
	UploadDir     string `mapstructure:"upload_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxImageMB    int64  `mapstructure:"max_image_mb"`
	MaxVideoMB    int64  `mapstructure:"max_video_mb"`
}

// LedgerConfig 后台对账任务，AuditInterval 为 0 时不启动
type LedgerConfig struct {
	AuditInterval  time.Duration `mapstructure:"audit_interval"`
	AuditBatchSize int           `mapstructure:"audit_batch_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "appuser")
	v.SetDefault("database.password", "apppass")
	v.SetDefault("database.name", "fittrack")
	v.SetDefault("database.path", "data/fittrack.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("auth.jwt_secret", "dev-secret")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("media.upload_dir", "uploads")
	v.SetDefault("media.public_base_url", "")
	v.SetDefault("media.max_image_mb", 5)
	v.SetDefault("media.max_video_mb", 200)

	v.SetDefault("ledger.audit_interval", "0s")
	v.SetDefault("ledger.audit_batch_size", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig 加载配置文件
// 配置文件可选，所有配置项都可以被 FIT_ 前缀的环境变量覆盖，例如 FIT_DATABASE_DRIVER=sqlite
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.Server.CORSOrigins = splitOrigins(config.Server.CORSOrigins)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验启动必需的配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Ledger.AuditInterval < 0 {
		return errors.New("ledger.audit_interval must not be negative")
	}
	return nil
}

// splitOrigins 同时兼容 YAML 列表和逗号分隔的环境变量
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
