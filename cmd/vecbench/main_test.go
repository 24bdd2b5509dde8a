package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench"
	"github.com/hupe1980/vecbench/precision"
)

const tinyConfig = `
dataset:
  synthetic:
    rows: 500
    queries: 12
    dim: 8
    clusters: 4
    width: 20
simd: generic
k: [5]
precisions: [fp32]
plans:
  - family: IVF_FLAT
    precisions: [fp32, fp16]
    build:
      - name: nlist
        values: [4]
    search:
      - name: nprobe
        values: [1, 4]
  - family: IDMAP
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vecbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadConfig(viper.New(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "synthetic", cfg.Dataset.Source)
	assert.Equal(t, 20000, cfg.Dataset.Synthetic.Rows)
	assert.Equal(t, "L2", cfg.Metric)
	assert.Equal(t, []int{100}, cfg.K)
	assert.Equal(t, []string{"fp32", "fp16", "bf16"}, cfg.Precisions)
	assert.Equal(t, "local", cfg.Store.Kind)
	assert.Equal(t, []string{"text"}, cfg.Report.Formats)
}

func TestLoadConfig_Layering(t *testing.T) {
	path := writeConfig(t, tinyConfig+"metric: IP\ncodec: lz4\n")
	t.Setenv("VECBENCH_METRIC", "COSINE")
	t.Setenv("VECBENCH_DATASET_SYNTHETIC_ROWS", "700")

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--codec", "none", "--k", "1,10"}))

	cfg, err := loadConfig(viper.New(), path, cmd.PersistentFlags())
	require.NoError(t, err)

	assert.Equal(t, "COSINE", cfg.Metric)
	assert.Equal(t, 700, cfg.Dataset.Synthetic.Rows)
	assert.Equal(t, 8, cfg.Dataset.Synthetic.Dim)
	assert.Equal(t, "none", cfg.Codec)
	assert.Equal(t, []int{1, 10}, cfg.K)
	require.Len(t, cfg.Plans, 2)
	assert.Equal(t, []int{1, 4}, cfg.Plans[0].Search[0].Values)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestBuildPlans(t *testing.T) {
	t.Run("defaults filtered by family", func(t *testing.T) {
		plans, err := buildPlans(fileConfig{
			Precisions: []string{"fp16"},
			Families:   []string{"hnsw", "GPU_BRUTE_FORCE"},
		})
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "HNSW", plans[0].Family)
		assert.Equal(t, []precision.Type{precision.Float16}, plans[0].Precisions)
		assert.Equal(t, "GPU_BRUTE_FORCE", plans[1].Family)
	})

	t.Run("explicit plans", func(t *testing.T) {
		plans, err := buildPlans(fileConfig{
			Precisions: []string{"fp32"},
			Plans: []planConfig{
				{Family: "IVF_PQ", Fixed: map[string]int{"nbits": 8}, Build: []axisConfig{{Name: "m", Values: []int{4, 8}}}},
				{Family: "IDMAP", Precisions: []string{"bf16"}},
			},
		})
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, 2, plans[0].Build.Size())
		assert.Equal(t, []precision.Type{precision.BFloat16}, plans[1].Precisions)
	})

	t.Run("bad precision", func(t *testing.T) {
		_, err := buildPlans(fileConfig{Precisions: []string{"fp8"}})
		assert.Error(t, err)
	})
}

func TestConfigCommand(t *testing.T) {
	path := writeConfig(t, tinyConfig)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", path, "--metric", "IP"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "metric: IP")
	assert.Contains(t, out.String(), "rows: 500")
	assert.Contains(t, out.String(), "family: IVF_FLAT")
}

func TestFamiliesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"families"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "IVF_PQ")
	assert.Contains(t, out.String(), "search.search_list_size=[100 200 400]")
	assert.Contains(t, out.String(), "round-trip")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, tinyConfig)
	prefix := filepath.Join(dir, "report")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"run",
		"--config", path,
		"--work-dir", filepath.Join(dir, "work"),
		"--store", "memory",
		"--format", "csv,json",
		"--output", prefix,
		"--log-level", "warn",
	})
	require.NoError(t, cmd.Execute())

	f, err := os.Open(prefix + ".csv")
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// header + IVF_FLAT (2 precisions x 2 nprobe) + IDMAP.
	require.Len(t, records, 6)
	assert.Equal(t, "IVF_FLAT", records[1][1])
	assert.Equal(t, "IDMAP", records[5][1])

	data, err := os.ReadFile(prefix + ".jsonl")
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(data, []byte("\n")))
}

func TestRunCommand_UnknownFamily(t *testing.T) {
	path := writeConfig(t, `
dataset:
  synthetic: {rows: 200, queries: 4, dim: 4, clusters: 2, width: 10}
simd: generic
k: [1]
`)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"run",
		"--config", path,
		"--families", "IDMAP,NOPE",
		"--store", "memory",
		"--work-dir", t.TempDir(),
		"--log-level", "error",
	})

	err := cmd.Execute()
	require.ErrorIs(t, err, vecbench.ErrUnknownFamily)
	assert.NotContains(t, out.String(), "IDMAP |")
}
