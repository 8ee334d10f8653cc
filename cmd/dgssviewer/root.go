// file: cmd/dgssviewer/root.go
package main

import (
	"github.com/spf13/cobra"
)

const version = "v1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "dgssviewer",
	Short:   "DGSS 野外地质调查数据查看与智能操作平台",
	Long:    "扫描文件夹中的 DGSS 数据文件 (.ta/.la/.pa/.db)，按地质分类字典归类展示，并通过本地语言模型把自然语言指令转换为数据库操作。",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认按 ./configs/config.yaml 查找)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}
