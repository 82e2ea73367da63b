package main

import (
	"errors"
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"git.fiblab.net/sim/walkshed/walkgraph"
)

// Config 服务配置，来自YAML文件，命令行参数可覆盖
type Config struct {
	Map       string          `yaml:"map"`       // {fspath} or {db}.{col}
	MongoURI  string          `yaml:"mongo_uri"` // 仅在map为{db}.{col}时使用
	Cache     string          `yaml:"cache"`     // 空表示不使用缓存
	Listen    string          `yaml:"listen"`
	Pprof     string          `yaml:"pprof"`
	LogLevel  string          `yaml:"log_level"`
	WalkSpeed float64         `yaml:"walk_speed"` // m/s
	Watch     bool            `yaml:"watch"`      // 地图文件变化时重建路网
	Benchmark BenchmarkConfig `yaml:"benchmark"`
}

type BenchmarkConfig struct {
	Enable         bool    `yaml:"enable"`
	Count          int     `yaml:"count"`
	Seed           int64   `yaml:"seed"`
	CPU            int     `yaml:"cpu"`
	People         int     `yaml:"people"`
	MaxTimeMinutes float64 `yaml:"max_time_minutes"`
	// 用A*结果校验收缩层次的路径代价
	Verify bool `yaml:"verify"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Listen:    "localhost:52101",
		LogLevel:  "info",
		WalkSpeed: walkgraph.DefaultWalkSpeed,
		Benchmark: BenchmarkConfig{
			Count:          1000,
			CPU:            1,
			People:         2,
			MaxTimeMinutes: 15,
		},
	}
}

func (c *Config) Validate() error {
	p, err := NewPath(c.Map)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	isColl := p != nil && !p.IsFile()
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Map, validation.Required),
		validation.Field(&c.MongoURI, validation.When(isColl && !c.cached(), validation.Required)),
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.LogLevel, validation.Required, validation.In(lo.ToAnySlice(lo.Keys(LOG_LEVELS))...)),
		validation.Field(&c.WalkSpeed, validation.Required, validation.Min(0.1), validation.Max(10.0)),
	); err != nil {
		return err
	}
	return c.Benchmark.Validate()
}

// 缓存中已有{db}.{col}的数据时无需mongo
func (c *Config) cached() bool {
	if c.Cache == "" {
		return false
	}
	p, err := NewPath(c.Map)
	if err != nil || p == nil || p.IsFile() {
		return false
	}
	_, err = os.Stat(cacheFile(c.Cache, p))
	return err == nil
}

func (c *BenchmarkConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Count, validation.Required, validation.Min(1)),
		validation.Field(&c.CPU, validation.Required, validation.Min(1)),
		validation.Field(&c.People, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxTimeMinutes, validation.Min(0.0)),
	)
}

// loadConfig 读取YAML配置并展开其中的环境变量
func loadConfig(filename string, target *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// loadConfigIfExists 文件不存在时保留默认值
func loadConfigIfExists(filename string, target *Config) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		log.Debugf("config file %s not found, using defaults", filename)
		return nil
	}
	return loadConfig(filename, target)
}
