package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// 种子数据目录，包含 locations.json 与 questions.json
	SeedDir string `mapstructure:"seed_dir"`
	// 对外可访问的地址，用于生成分享二维码
	PublicBaseURL     string `mapstructure:"public_base_url"`
	CORSAllowedOrigin string `mapstructure:"cors_allowed_origin"`

	HostTokenSecret string `mapstructure:"host_token_secret"`

	RoomIdleTimeout   time.Duration `mapstructure:"room_idle_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
	PushBufferSize    int           `mapstructure:"push_buffer_size"`
}


func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("seed_dir", "./data")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("cors_allowed_origin", "*")
	v.SetDefault("host_token_secret", "")
	v.SetDefault("room_idle_timeout", 30*time.Minute)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("heartbeat_timeout", 45*time.Second)
	v.SetDefault("push_buffer_size", 32)
}

// InitConfig 依次读取 .env、app_config.json 与环境变量，后者优先级最高
func InitConfig() (*AppConfig, error) {
	return load(".")
}

func load(dir string) (*AppConfig, error) {
	// .env 文件是可选的
	_ = godotenv.Load(dir + "/.env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
	}

	v.SetEnvPrefix("SPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容部署平台注入的 PORT
	if err := v.BindEnv("port", "SPY_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *AppConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("端口无效: %d", c.Port)
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat_timeout (%s) 必须大于 heartbeat_interval (%s)", c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	if c.PushBufferSize <= 0 {
		return fmt.Errorf("push_buffer_size 必须为正数")
	}

	return nil
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
