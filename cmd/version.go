package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// 编译时通过 -ldflags "-X .../cmd.Version=..." 设置
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var shortVersion bool

// versionCmd 版本信息命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Long:  `显示程序版本、提交和构建信息，--short 只输出版本号`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(os.Stdout, shortVersion)
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&shortVersion, "short", "s", false, "只输出版本号")
	rootCmd.AddCommand(versionCmd)
}

// printVersion 输出版本信息
func printVersion(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, Version)
		return
	}
	fmt.Fprintf(w, "%s %s\n", rootCmd.Use, Version)
	fmt.Fprintf(w, "Git提交: %s\n", GitCommit)
	fmt.Fprintf(w, "构建时间: %s\n", BuildTime)
	fmt.Fprintf(w, "Go版本: %s\n", runtime.Version())
	fmt.Fprintf(w, "平台: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
