package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// fileConfig is the layered configuration: defaults, then the config
// file, then VECBENCH_* environment variables, then flags.
type fileConfig struct {
	Dataset    datasetConfig `mapstructure:"dataset" yaml:"dataset"`
	Metric     string        `mapstructure:"metric" yaml:"metric"`
	SIMD       string        `mapstructure:"simd" yaml:"simd"`
	Threads    threadConfig  `mapstructure:"threads" yaml:"threads"`
	WorkDir    string        `mapstructure:"work_dir" yaml:"work_dir"`
	Codec      string        `mapstructure:"codec" yaml:"codec"`
	MemLimit   int64         `mapstructure:"memory_limit" yaml:"memory_limit"`
	IOLimit    int64         `mapstructure:"artifact_io_limit" yaml:"artifact_io_limit"`
	NQ         []int         `mapstructure:"nq" yaml:"nq,flow"`
	K          []int         `mapstructure:"k" yaml:"k,flow"`
	Precisions []string      `mapstructure:"precisions" yaml:"precisions,flow"`
	Families   []string      `mapstructure:"families" yaml:"families,flow"`
	Plans      []planConfig  `mapstructure:"plans" yaml:"plans,omitempty"`
	Store      storeConfig   `mapstructure:"store" yaml:"store"`
	Report     reportConfig  `mapstructure:"report" yaml:"report"`
	Log        logConfig     `mapstructure:"log" yaml:"log"`
}

type datasetConfig struct {
	// Source is "synthetic" or "texmex".
	Source    string          `mapstructure:"source" yaml:"source"`
	Name      string          `mapstructure:"name" yaml:"name"`
	Dir       string          `mapstructure:"dir" yaml:"dir"`
	Synthetic syntheticConfig `mapstructure:"synthetic" yaml:"synthetic"`
}

type syntheticConfig struct {
	Rows     int     `mapstructure:"rows" yaml:"rows"`
	Queries  int     `mapstructure:"queries" yaml:"queries"`
	Dim      int     `mapstructure:"dim" yaml:"dim"`
	Clusters int     `mapstructure:"clusters" yaml:"clusters"`
	Spread   float32 `mapstructure:"spread" yaml:"spread"`
	Width    int     `mapstructure:"width" yaml:"width"`
	Seed     int64   `mapstructure:"seed" yaml:"seed"`
}

type threadConfig struct {
	Build  int `mapstructure:"build" yaml:"build"`
	Search int `mapstructure:"search" yaml:"search"`
}

type axisConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Values []int  `mapstructure:"values" yaml:"values,flow"`
}

type planConfig struct {
	Family     string         `mapstructure:"family" yaml:"family"`
	Precisions []string       `mapstructure:"precisions" yaml:"precisions,flow,omitempty"`
	Fixed      map[string]int `mapstructure:"fixed" yaml:"fixed,omitempty"`
	Build      []axisConfig   `mapstructure:"build" yaml:"build,omitempty"`
	Search     []axisConfig   `mapstructure:"search" yaml:"search,omitempty"`
	RoundTrip  bool           `mapstructure:"round_trip" yaml:"round_trip,omitempty"`
}

type storeConfig struct {
	// Kind is "local", "memory", "s3" or "minio".
	Kind      string `mapstructure:"kind" yaml:"kind"`
	Dir       string `mapstructure:"dir" yaml:"dir,omitempty"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style,omitempty"`
	AccessKey string `mapstructure:"access_key" yaml:"-"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	Secure    bool   `mapstructure:"secure" yaml:"secure,omitempty"`
}

type reportConfig struct {
	// Formats are any of "text", "csv", "json" and "sqlite".
	Formats []string `mapstructure:"formats" yaml:"formats,flow"`
	// Output is the file prefix for csv and json reports; "-" is stdout.
	Output string `mapstructure:"output" yaml:"output"`
	SQLite string `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
	Run    string `mapstructure:"run" yaml:"run,omitempty"`
}

type logConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataset.source", "synthetic")
	v.SetDefault("dataset.name", "synthetic")
	v.SetDefault("dataset.synthetic.rows", 20000)
	v.SetDefault("dataset.synthetic.queries", 200)
	v.SetDefault("dataset.synthetic.dim", 64)
	v.SetDefault("dataset.synthetic.clusters", 64)
	v.SetDefault("dataset.synthetic.spread", 0.05)
	v.SetDefault("dataset.synthetic.width", 100)
	v.SetDefault("dataset.synthetic.seed", 42)
	v.SetDefault("metric", "L2")
	v.SetDefault("simd", "auto")
	v.SetDefault("codec", "zstd")
	v.SetDefault("k", []int{100})
	v.SetDefault("precisions", []string{"fp32", "fp16", "bf16"})
	v.SetDefault("store.kind", "local")
	v.SetDefault("report.formats", []string{"text"})
	v.SetDefault("report.output", "-")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flag name -> config key
var flagKeys = map[string]string{
	"dataset":        "dataset.name",
	"dataset-dir":    "dataset.dir",
	"source":         "dataset.source",
	"metric":         "metric",
	"simd":           "simd",
	"build-threads":  "threads.build",
	"search-threads": "threads.search",
	"work-dir":       "work_dir",
	"codec":          "codec",
	"memory-limit":   "memory_limit",
	"nq":             "nq",
	"k":              "k",
	"precisions":     "precisions",
	"families":       "families",
	"store":          "store.kind",
	"format":         "report.formats",
	"output":         "report.output",
	"log-level":      "log.level",
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("dataset", "", "dataset name (file prefix for texmex)")
	fs.String("dataset-dir", "", "directory holding texmex dataset files")
	fs.String("source", "", "dataset source: synthetic or texmex")
	fs.String("metric", "", "distance metric: L2, IP or COSINE")
	fs.String("simd", "", "kernel acceleration: auto, generic, neon, avx2, avx512")
	fs.Int("build-threads", 0, "workers per build (0 = GOMAXPROCS)")
	fs.Int("search-threads", 0, "workers per search (0 = GOMAXPROCS)")
	fs.String("work-dir", "", "root of per-index work directories")
	fs.String("codec", "", "artifact codec: none, lz4, zstd")
	fs.Int64("memory-limit", 0, "byte limit for converted dataset copies")
	fs.IntSlice("nq", nil, "query batch sizes (default: all queries)")
	fs.IntSlice("k", nil, "top-k values")
	fs.StringSlice("precisions", nil, "precisions to run: fp32, fp16, bf16")
	fs.StringSlice("families", nil, "families from the default plans to run")
	fs.String("store", "", "artifact store: local, memory, s3, minio")
	fs.StringSlice("format", nil, "report formats: text, csv, json, sqlite")
	fs.StringP("output", "o", "", "report file prefix, - for stdout")
	fs.String("log-level", "", "log level: debug, info, warn, error")
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were explicitly set.
func loadConfig(v *viper.Viper, path string, fs *pflag.FlagSet) (fileConfig, error) {
	setDefaults(v)
	v.SetEnvPrefix("VECBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fileConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("vecbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vecbench")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fileConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return fileConfig{}, err
				}
			}
		}
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
