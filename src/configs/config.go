package configs

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		Port int        `yaml:"port"`
		CORS CORSConfig `yaml:"cors"`
	} `yaml:"web"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	// Sequence 多帧上传限制
	Sequence SequenceConfig `yaml:"sequence"`

	SelectedModule map[string]string `yaml:"selected_module"`

	Predictor map[string]PredictorConfig `yaml:"Predictor"`
	LLM       map[string]LLMConfig       `yaml:"LLM"`
}

// CORSConfig 跨域配置，只允许前端来源访问
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAge         int      `yaml:"max_age"` // 预检缓存秒数
}

// SequenceConfig 帧序列上传与解码限制
type SequenceConfig struct {
	MaxFrames      int            `yaml:"max_frames"`       // 单次请求最多帧数
	MaxRequestSize int64          `yaml:"max_request_size"` // 整个请求体上限（字节）
	DecodeWorkers  int            `yaml:"decode_workers"`   // 并发解码数
	MaxTotalPixels int64          `yaml:"max_total_pixels"` // 单次请求所有帧像素总和上限
	Security       SecurityConfig `yaml:"security"`
}

// SecurityConfig 图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`   // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`      // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`       // 最大宽度
	MaxHeight      int      `yaml:"max_height"`      // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"` // 允许的图片格式
}

// PredictorConfig 预测器配置结构
type PredictorConfig struct {
	Type        string                 `yaml:"type"`         // static | openai | ollama | remote
	Label       string                 `yaml:"label"`        // static 类型返回的固定结果
	ModelName   string                 `yaml:"model_name"`   // 视觉模型名称
	BaseURL     string                 `yaml:"url"`          // API 地址
	APIKey      string                 `yaml:"api_key"`      // API 密钥
	Prompt      string                 `yaml:"prompt"`       // 发给视觉模型的指令
	Temperature float64                `yaml:"temperature"`  // 温度参数
	MaxTokens   int                    `yaml:"max_tokens"`   // 最大令牌数
	MaxEdge     int                    `yaml:"max_edge"`     // 重新编码时的最长边
	Timeout     string                 `yaml:"timeout"`      // 调用超时，例如 30s
	Extra       map[string]interface{} `yaml:",inline"`      // 额外配置
}

// LLMConfig LLM配置结构
type LLMConfig struct {
	Type         string                 `yaml:"type"`
	ModelName    string                 `yaml:"model_name"`
	BaseURL      string                 `yaml:"url"`
	APIKey       string                 `yaml:"api_key"`
	SystemPrompt string                 `yaml:"system_prompt"`
	Temperature  float64                `yaml:"temperature"`
	MaxTokens    int                    `yaml:"max_tokens"`
	Extra        map[string]interface{} `yaml:",inline"`
}

// LoadConfig 从文件加载配置，优先 .config.yaml，其次 config.yaml
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	config, err := LoadConfigFile(path)
	return config, path, err
}

// LoadConfigFile 读取指定文件，展开 ${VAR} 环境变量后解析
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 配置并补全默认值
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.Log.LogDir == "" {
		c.Log.LogDir = "logs"
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8000
	}
	if len(c.Web.CORS.AllowedOrigins) == 0 {
		c.Web.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	seq := &c.Sequence
	if seq.MaxFrames <= 0 {
		seq.MaxFrames = 64
	}
	if seq.MaxRequestSize <= 0 {
		seq.MaxRequestSize = 64 << 20
	}
	if seq.DecodeWorkers <= 0 {
		seq.DecodeWorkers = 4
	}
	// 64M 像素，按 RGBA 约 256MB
	if seq.MaxTotalPixels <= 0 {
		seq.MaxTotalPixels = 64 << 20
	}
	sec := &seq.Security
	if sec.MaxFileSize <= 0 {
		sec.MaxFileSize = 5 << 20
	}
	if sec.MaxWidth <= 0 {
		sec.MaxWidth = 4096
	}
	if sec.MaxHeight <= 0 {
		sec.MaxHeight = 4096
	}
	if sec.MaxPixels <= 0 {
		sec.MaxPixels = 16777216
	}
	if len(sec.AllowedFormats) == 0 {
		sec.AllowedFormats = []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"}
	}

	if c.SelectedModule == nil {
		c.SelectedModule = map[string]string{}
	}
	if c.Predictor == nil {
		c.Predictor = map[string]PredictorConfig{}
	}
	// 没有配置任何预测器时，两个接口都回落到固定结果
	if _, ok := c.Predictor["static"]; !ok {
		c.Predictor["static"] = PredictorConfig{Type: "static", Label: "V"}
	}
	if c.SelectedModule["Predictor"] == "" {
		c.SelectedModule["Predictor"] = "static"
	}
	if c.SelectedModule["Letter"] == "" {
		c.SelectedModule["Letter"] = "static"
	}
}
