// file: cmd/dgssviewer/analyze.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/catalog"
)

// analyzeCmd 在命令行直接输出文件夹结构摘要，便于调试数据目录。
var analyzeCmd = &cobra.Command{
	Use:   "analyze <folder>",
	Short: "分析文件夹中全部数据文件的表结构并打印摘要",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.New()
		defer cat.Close()

		text, err := cat.AnalyzeFolder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}
