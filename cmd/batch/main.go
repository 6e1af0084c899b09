// Package main 是批处理脚本的入口点：按区间抽取 parquet 表格中的招标文件。
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
