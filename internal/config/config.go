package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"studio"`
	DBPath     string `env:"DBPath" envDefault:"datas/studio.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/images"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// MinIO 存储配置
	StorageMinIOEndpoint  string `env:"STORAGE_MINIO_ENDPOINT"`
	StorageMinIOBucket    string `env:"STORAGE_MINIO_BUCKET"`
	StorageMinIOPrefix    string `env:"STORAGE_MINIO_PREFIX"`
	StorageMinIOAccessKey string `env:"STORAGE_MINIO_ACCESS_KEY"`
	StorageMinIOSecretKey string `env:"STORAGE_MINIO_SECRET_KEY"`
	StorageMinIOUseSSL    bool   `env:"STORAGE_MINIO_USE_SSL" envDefault:"false"`

	// 图像生成服务
	GeneratorDriver     string `env:"GENERATOR_DRIVER" envDefault:"volcengine"`
	VolcengineAPIKey    string `env:"VOLCENGINE_API_KEY" envDefault:""`
	OpenAICompatAPIKey  string `env:"OPENAI_COMPAT_API_KEY" envDefault:""`
	OpenAICompatBaseURL string `env:"OPENAI_COMPAT_BASE_URL" envDefault:"https://openrouter.ai/api/v1/chat/completions"`
	DefaultModel        string `env:"DEFAULT_MODEL" envDefault:"doubao-seedream-4-0-250828"`
	DefaultResolution   string `env:"DEFAULT_RESOLUTION" envDefault:"2K"`
	DefaultAspectRatio  string `env:"DEFAULT_ASPECT_RATIO" envDefault:"16:9"`
	BackgroundGridCount int    `env:"BACKGROUND_GRID_COUNT" envDefault:"4"`

	GenerationTimeoutMinutes int   `env:"GENERATION_TIMEOUT_MINUTES" envDefault:"10"`
	MaxUploadMB              int64 `env:"MAX_UPLOAD_MB" envDefault:"32"`

	// 身份令牌，只用于识别请求者
	AuthRequired         bool   `env:"AUTH_REQUIRED" envDefault:"false"`
	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"studio"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

// ParseConfig 读取 .env（可选）后解析环境变量
func ParseConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logrus.WithError(err).WithField("file", file).Warn("load env file failed")
		}
	}

	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	if Conf.BackgroundGridCount <= 0 {
		Conf.BackgroundGridCount = 4
	}
	if Conf.GenerationTimeoutMinutes <= 0 {
		Conf.GenerationTimeoutMinutes = 10
	}
	logrus.WithFields(logrus.Fields{
		"db_type":          Conf.DBType,
		"storage_type":     Conf.StorageType,
		"generator_driver": Conf.GeneratorDriver,
	}).Debug("config loaded")
	return Conf, nil
}
