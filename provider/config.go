// provider/config.go
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"supaupload/storage"
)

// DefaultBucket 是未配置 bucket 时使用的存储桶
const DefaultBucket = "strapi-uploads"

// Config 在 New 时读取一次，之后不再变化
type Config struct {
	APIURL    string  `mapstructure:"apiUrl"`
	APIKey    string  `mapstructure:"apiKey"`
	Bucket    string  `mapstructure:"bucket"`
	Directory string  `mapstructure:"directory"`
	Options   Options `mapstructure:"options"`
}

// Options 是转发给存储客户端的选项。
// DynamicDirectory 由适配器自己消费，不会转发。
type Options struct {
	DynamicDirectory bool   `mapstructure:"dynamic_directory"`
	Backend          string `mapstructure:"backend"`

	// s3 / webdav
	AccessKeyID  string `mapstructure:"access_key_id"`
	Region       string `mapstructure:"region"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	Headers map[string]string `mapstructure:"headers"`

	// Extra 收集所有未识别的键，原样透传
	Extra map[string]any `mapstructure:",remain"`
}

// DecodeOptions 把宿主传入的无类型选项解码为 Options
func DecodeOptions(raw map[string]any) (Options, error) {
	var opts Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("无法解析 provider options: %w", err)
	}
	return opts, nil
}

// resolveDirectory 去掉目录首尾各一个斜杠；未配置目录且开启 dynamic_directory 时使用 <年>/<月>
func resolveDirectory(directory string, dynamic bool, now time.Time) string {
	directory = strings.TrimPrefix(directory, "/")
	directory = strings.TrimSuffix(directory, "/")
	if directory == "" && dynamic {
		directory = fmt.Sprintf("%d/%d", now.Year(), int(now.Month()))
	}
	return directory
}

func (c Config) bucket() string {
	if c.Bucket == "" {
		return DefaultBucket
	}
	return c.Bucket
}

func (c Config) validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// clientConfig 生成转发给存储后端的配置，不含 dynamic_directory
func (c Config) clientConfig() storage.ClientConfig {
	apiURL := strings.TrimSuffix(c.APIURL, "/")
	bucket := c.bucket()

	var extra map[string]any
	for k, v := range c.Options.Extra {
		if k == "dynamic_directory" {
			continue
		}
		if extra == nil {
			extra = make(map[string]any, len(c.Options.Extra))
		}
		extra[k] = v
	}

	cc := storage.ClientConfig{
		URL:          apiURL,
		APIKey:       c.APIKey,
		Bucket:       bucket,
		AccessKeyID:  c.Options.AccessKeyID,
		Region:       c.Options.Region,
		UsePathStyle: c.Options.UsePathStyle,
		Headers:      c.Options.Headers,
		Extra:        extra,
	}
	switch strings.ToLower(c.Options.Backend) {
	case "", storage.KindSupabase:
		cc.URL = apiURL + "/storage/v1"
	case storage.KindS3:
		// Supabase 的 S3 兼容入口只支持 path-style
		cc.URL = apiURL + "/storage/v1/s3"
		cc.UsePathStyle = true
		cc.PublicBaseURL = apiURL + "/storage/v1/object/public/" + bucket
	}
	return cc
}
