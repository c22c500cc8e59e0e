// config.go
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/ichijohodaka/spiral-shim/geometry"
	"github.com/ichijohodaka/spiral-shim/objective"
	"github.com/ichijohodaka/spiral-shim/postproc"
	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/residual"
	"github.com/ichijohodaka/spiral-shim/shim"
	"github.com/ichijohodaka/spiral-shim/solver"
)

// ConfigFileName は --config を省略したときに読むファイル
const ConfigFileName = "spiralshim.yml"

// LocalOverride は config_local.go の init で差し替える。
// config.go を触らずに手元の設定を変えたいとき用。
var LocalOverride func(cfg *Config)

// SolenoidConfig は residual: solenoid のときの合成磁場
type SolenoidConfig struct {
	L       float64 `koanf:"l" yaml:"l"`
	R       float64 `koanf:"r" yaml:"r"`
	D0      float64 `koanf:"d0" yaml:"d0"`
	Delta   float64 `koanf:"delta" yaml:"delta"`
	Layers  int     `koanf:"layers" yaml:"layers"`
	Current float64 `koanf:"current" yaml:"current"`
	MaxZ    float64 `koanf:"max_z" yaml:"max_z"` // solenoid コマンドの表示範囲 [−MaxZ, MaxZ]
}

// OutputConfig は結果の書き出し先
type OutputConfig struct {
	Dir      string `koanf:"dir" yaml:"dir"`
	CSV      bool   `koanf:"csv" yaml:"csv"`
	TSV      bool   `koanf:"tsv" yaml:"tsv"` // true なら区切りをタブにする
	XLSX     string `koanf:"xlsx" yaml:"xlsx"`
	PNG      bool   `koanf:"png" yaml:"png"`
	History  string `koanf:"history" yaml:"history"`     // "" なら記録しない
	MaxPrint int    `koanf:"max_print" yaml:"max_print"` // コンソールに表示する最大行数（0なら制限なし）
}

// Config は「ユーザー設定」をまとめたもの。長さは m、電流は A。
type Config struct {
	Tolerance float64 `koanf:"tolerance" yaml:"tolerance"`
	L0        float64 `koanf:"l0" yaml:"l0"`
	L         float64 `koanf:"l" yaml:"l"`
	W         float64 `koanf:"w" yaml:"w"`
	D0        float64 `koanf:"d0" yaml:"d0"`
	Delta     float64 `koanf:"delta" yaml:"delta"`
	H         float64 `koanf:"h" yaml:"h"`
	R         float64 `koanf:"r" yaml:"r"`
	Rs        float64 `koanf:"rs" yaml:"rs"`
	Rho       float64 `koanf:"rho" yaml:"rho"`

	// 電流最適化
	Inoise         float64 `koanf:"inoise" yaml:"inoise"`
	InitialCurrent float64 `koanf:"initial_current" yaml:"initial_current"` // .nan なら解析的に決める
	Seed           int64   `koanf:"seed" yaml:"seed"`

	// 巻数最適化
	A        float64 `koanf:"a" yaml:"a"`
	I        float64 `koanf:"i" yaml:"i"`
	N        float64 `koanf:"n" yaml:"n"`
	MaxAngle float64 `koanf:"max_angle" yaml:"max_angle"`
	Method   string  `koanf:"method" yaml:"method"` // 1..4 または名前
	Hessian  string  `koanf:"hessian" yaml:"hessian"`
	Quantize string  `koanf:"quantize" yaml:"quantize"`

	MaxIterations int `koanf:"max_iterations" yaml:"max_iterations"`

	// 残留磁場
	Residual     string         `koanf:"residual" yaml:"residual"`
	Coefficients []float64      `koanf:"coefficients" yaml:"coefficients"`
	Solenoid     SolenoidConfig `koanf:"solenoid" yaml:"solenoid"`

	Output   OutputConfig `koanf:"output" yaml:"output"`
	LogLevel string       `koanf:"log_level" yaml:"log_level"`
}

// ============================================================
// ユーザー設定（ここから）
// ============================================================

func DefaultConfig() Config {
	return Config{
		Tolerance: 1e-8,

		// 残留磁場を測った長さと最適化する長さ（L ≥ L0 を推奨）
		L0: 0.1,
		L:  0.1,
		// 基板幅。基板がなければ d0 + 2·delta
		W: 0.02,

		// 導体：d0 は線径またはストリップ幅、delta は被覆厚またはギャップの半分
		D0:    1e-3,
		Delta: 0,
		H:     35e-6,
		// 半径は d·int(R/d) + d/2 に調整される
		R:   0.01,
		Rs:  0.02,
		Rho: 1.68e-8, // 銅

		Inoise:         1e-3,
		InitialCurrent: math.NaN(),
		Seed:           1,

		A:        1,
		I:        0.16,
		N:        10,
		MaxAngle: 0,
		Method:   "4",
		Hessian:  "gauss-newton",
		Quantize: "truncate",

		MaxIterations: 0,

		Residual: "standrews",
		Solenoid: SolenoidConfig{
			L:       0.1,
			R:       0.02,
			D0:      0.5e-3,
			Delta:   0.05e-3,
			Layers:  1,
			Current: 0.1,
			MaxZ:    0.1,
		},

		Output: OutputConfig{
			Dir:      "out",
			CSV:      true,
			XLSX:     "result.xlsx",
			PNG:      true,
			History:  "history.db",
			MaxPrint: 10,
		},
		LogLevel: "info",
	}
}

// ============================================================
// ユーザー設定（ここまで）
// ============================================================

// LoadConfig: 既定値 → LocalOverride → path の YAML → overrides（key=value）の順に重ねる。
// path のファイルがなければ既定値のまま。
func LoadConfig(path string, overrides []string) (Config, error) {
	cfg := DefaultConfig()
	if LocalOverride != nil {
		LocalOverride(&cfg)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}
	if len(overrides) > 0 {
		m := make(map[string]interface{}, len(overrides))
		for _, kv := range overrides {
			key, val, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return Config{}, fmt.Errorf("override %q: want key=value", kv)
			}
			m[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
		}
		if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
			return Config{}, fmt.Errorf("overrides: %w", err)
		}
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return out, nil
}

func (c Config) layout() shim.Layout {
	return shim.Layout{L0: c.L0, L: c.L, W: c.W}
}

func (c Config) geometry() geometry.Params {
	return geometry.Params{D0: c.D0, Delta: c.Delta, H: c.H, R: c.R, Rs: c.Rs, Rho: c.Rho}
}

// CurrentParams は電流最適化の入力に変換する
func (c Config) CurrentParams() shim.CurrentParams {
	return shim.CurrentParams{
		Tolerance:      c.Tolerance,
		Layout:         c.layout(),
		Geometry:       c.geometry(),
		Inoise:         c.Inoise,
		InitialCurrent: c.InitialCurrent,
		Seed:           c.Seed,
		MaxIterations:  c.MaxIterations,
	}
}

// TurnsParams は巻数最適化の入力に変換する。文字列の設定値はここで解釈する。
func (c Config) TurnsParams() (shim.TurnsParams, error) {
	m, err := solver.ParseMethod(c.Method)
	if err != nil {
		return shim.TurnsParams{}, err
	}
	h, err := objective.ParseHessianForm(c.Hessian)
	if err != nil {
		return shim.TurnsParams{}, err
	}
	q, err := postproc.ParsePolicy(c.Quantize)
	if err != nil {
		return shim.TurnsParams{}, err
	}
	return shim.TurnsParams{
		Tolerance:     c.Tolerance,
		Layout:        c.layout(),
		Geometry:      c.geometry(),
		A:             c.A,
		I:             c.I,
		N:             c.N,
		MaxAngle:      c.MaxAngle,
		Method:        m,
		Hessian:       h,
		Quantize:      q,
		MaxIterations: c.MaxIterations,
	}, nil
}

func (s SolenoidConfig) solenoid() residual.Solenoid {
	return residual.Solenoid{L: s.L, R: s.R, D0: s.D0, Delta: s.Delta, Layers: s.Layers, Current: s.Current}
}

// Sampler は residual の設定から残留磁場を選ぶ
func (c Config) Sampler() (residual.Func, error) {
	return residual.ByName(c.Residual, c.Coefficients, c.Solenoid.solenoid())
}

// ReportOptions はファイル出力の設定
func (c Config) ReportOptions() report.Options {
	o := report.Options{
		Dir:  c.Output.Dir,
		CSV:  c.Output.CSV,
		XLSX: c.Output.XLSX,
		PNG:  c.Output.PNG,
	}
	if c.Output.TSV {
		o.Comma = '\t'
	}
	return o
}
