// config.go は触らずにここで差し替え

package main

func init() {
	LocalOverride = func(cfg *Config) {

		// コメントアウトでデフォルト値が使われる。
		// spiralshim.yml があればそちらが優先される。

		// 反復の終了判定
		// cfg.Tolerance = 1e-10

		// 巻数最適化のアルゴリズム（1=trust-exact, 2=trust-krylov, 3=trust-ncg, 4=Newton-CG）
		// cfg.Method = "1"

		// 結果表示を制限。ファイルには全部保存される。
		cfg.Output.MaxPrint = 10

		// 合成磁場で試すとき
		// cfg.Residual = "solenoid"
		// cfg.Solenoid.Layers = 2

		// 出力を減らすとき（"" なら保存しない）
		// cfg.Output.XLSX = ""
		// cfg.Output.PNG = false
		// cfg.Output.History = ""
	}
}
