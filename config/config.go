package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Agent    AgentConfig    `yaml:"agent"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// LLMConfig 目标分析服务使用的模型，APIKey 为空时只使用本地规则分类
type LLMConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ToolsConfig 工具后端（搜索、代码助手、视频摘要等）
type ToolsConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AgentConfig struct {
	MaxWorkers        int           `yaml:"max_workers"`  // 跨资源并发上限
	StepTimeout       time.Duration `yaml:"step_timeout"` // 单步超时
	MaxRetries        int           `yaml:"max_retries"`  // 硬失败重试次数，0 表示不重试
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	SplitInstructions bool          `yaml:"split_instructions"` // 搜索目标按句拆分为多条指令
	LocalFallback     bool          `yaml:"local_fallback"`     // 分析服务不可用时降级到本地规则
	HistoryLimit      int           `yaml:"history_limit"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/runs.db",
		},
		LLM: LLMConfig{
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 1024,
		},
		Tools: ToolsConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 2 * time.Minute,
		},
		Agent: AgentConfig{
			MaxWorkers:    4,
			StepTimeout:   3 * time.Minute,
			MaxRetries:    0,
			RetryBackoff:  time.Second,
			LocalFallback: true,
			HistoryLimit:  50,
		},
	}
}

func loadConfig() *Config {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			klog.Warningf("配置文件解析失败，使用默认配置: path=%s, err=%v", configPath, err)
		}
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 工具后端
	if baseURL := os.Getenv("TOOLS_BASE_URL"); baseURL != "" {
		config.Tools.BaseURL = baseURL
	}
	if d, ok := envDuration("TOOLS_TIMEOUT"); ok {
		config.Tools.Timeout = d
	}

	// 编排参数
	if n, ok := envInt("AGENT_MAX_WORKERS"); ok {
		config.Agent.MaxWorkers = n
	}
	if d, ok := envDuration("AGENT_STEP_TIMEOUT"); ok {
		config.Agent.StepTimeout = d
	}
	if n, ok := envInt("AGENT_MAX_RETRIES"); ok {
		config.Agent.MaxRetries = n
	}
	if b, ok := envBool("AGENT_SPLIT_INSTRUCTIONS"); ok {
		config.Agent.SplitInstructions = b
	}
	if b, ok := envBool("AGENT_LOCAL_FALLBACK"); ok {
		config.Agent.LocalFallback = b
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		klog.Warningf("环境变量格式错误，已忽略: %s=%s", key, v)
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		klog.Warningf("环境变量格式错误，已忽略: %s=%s", key, v)
		return false, false
	}
	return b, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		klog.Warningf("环境变量格式错误，已忽略: %s=%s", key, v)
		return 0, false
	}
	return d, true
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
