package config

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Log           LogConfig           `mapstructure:"log"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Session       SessionConfig       `mapstructure:"session"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Captcha       CaptchaConfig       `mapstructure:"captcha"`
	Cron          CronConfig          `mapstructure:"cron"`
	Meta          MetaConfig          `mapstructure:"meta"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name            string     `mapstructure:"name"`
	Mode            string     `mapstructure:"mode"`
	Port            int        `mapstructure:"port"`
	TrustedPlatform string     `mapstructure:"trusted_platform"` // 例如 CF-Connecting-IP
	Cors            CorsConfig `mapstructure:"cors"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	ExpiresIn string `mapstructure:"expires_in"` // 形如 1h、7d、1M
	Issuer    string `mapstructure:"issuer"`
	MachineID int64  `mapstructure:"machine_id"`
}

// SessionConfig 服务端会话白名单配置
type SessionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Store   string `mapstructure:"store"` // redis/memory
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // mysql/postgres/sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	switch c.Type {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			c.Host, c.Username, c.Password, c.Database, c.Port)
	case "sqlite":
		// sqlite 下 database 即文件路径
		return c.Database
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	}
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr 获取Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ElasticsearchConfig Elasticsearch配置
type ElasticsearchConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	URLs     []string `mapstructure:"urls"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Index    string   `mapstructure:"index"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	Storage      string     `mapstructure:"storage"` // local/cos
	Dir          string     `mapstructure:"dir"`
	URLPrefix    string     `mapstructure:"url_prefix"` // 静态文件路由前缀
	BaseURL      string     `mapstructure:"base_url"`   // 对外访问的上传文件基础地址
	MaxSize      int64      `mapstructure:"max_size"`
	AllowedTypes []string   `mapstructure:"allowed_types"`
	COS          COSStorage `mapstructure:"cos"`
}

// COSStorage 腾讯云COS存储配置
type COSStorage struct {
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	BucketURL string `mapstructure:"bucket_url"`
	Prefix    string `mapstructure:"prefix"`
}

// CaptchaConfig 登录验证码配置
type CaptchaConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Height  int  `mapstructure:"height"`
	Width   int  `mapstructure:"width"`
	Length  int  `mapstructure:"length"`
}

// CronConfig 定时任务配置
type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CompactSpec string `mapstructure:"compact_spec"`
}

// MetaConfig 网站元信息抓取配置
type MetaConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// CorsConfig 跨域配置
type CorsConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposedHeaders   []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
	// 配置Viper实例
	viperInstance *viper.Viper
	reloadMutex   sync.RWMutex
	reloadHooks   []func(*Config)
)

// Init 初始化配置
func Init(configPath string) error {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return fmt.Errorf("解析配置文件失败: %v", err)
	}

	GlobalConfig = &config
	viperInstance = v

	// 监听配置文件变化
	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		log.Printf("配置文件发生变化: %s", in.Name)
		reload(v)
	})
	return nil
}

// setDefaults 默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "startpage-api")
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.port", 8080)
	v.SetDefault("database.type", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("jwt.expires_in", "1h")
	v.SetDefault("jwt.issuer", "StartPage")
	v.SetDefault("session.enabled", true)
	v.SetDefault("session.store", "redis")
	v.SetDefault("upload.storage", "local")
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.url_prefix", "/uploads")
	v.SetDefault("upload.max_size", 2<<20)
	v.SetDefault("elasticsearch.index", "startpage_sites")
	v.SetDefault("captcha.height", 80)
	v.SetDefault("captcha.width", 240)
	v.SetDefault("captcha.length", 4)
	v.SetDefault("cron.compact_spec", "0 0 3 * * *")
	v.SetDefault("meta.timeout_seconds", 10)
}

// reload 重新加载可热更新的配置项
func reload(v *viper.Viper) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Printf("重新解析配置文件失败: %v", err)
		return
	}

	reloadMutex.Lock()
	defer reloadMutex.Unlock()

	// 只热更新日志级别和上传地址，其余配置需要重启
	GlobalConfig.Log.Level = config.Log.Level
	GlobalConfig.Upload.BaseURL = config.Upload.BaseURL
	for _, hook := range reloadHooks {
		hook(GlobalConfig)
	}
}

// OnReload 注册配置热更新回调
func OnReload(hook func(*Config)) {
	reloadMutex.Lock()
	defer reloadMutex.Unlock()
	reloadHooks = append(reloadHooks, hook)
}

// UploadBaseURL 获取上传文件访问地址，未配置 base_url 时使用 url_prefix
func UploadBaseURL() string {
	reloadMutex.RLock()
	defer reloadMutex.RUnlock()
	if GlobalConfig == nil {
		return ""
	}
	if GlobalConfig.Upload.BaseURL == "" {
		return strings.TrimRight(GlobalConfig.Upload.URLPrefix, "/")
	}
	return strings.TrimRight(GlobalConfig.Upload.BaseURL, "/")
}

// GetString 获取字符串配置
func GetString(key string) string {
	return viperInstance.GetString(key)
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}
