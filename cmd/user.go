package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/database"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd 用户管理命令
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "用户管理命令",
	Long:  `用户管理相关的命令，包括创建用户、列出用户、重置密码`,
}

// createUserCmd 创建用户命令
var createUserCmd = &cobra.Command{
	Use:   "create",
	Short: "创建用户",
	Long:  `交互式创建登录用户`,
	Run: func(cmd *cobra.Command, args []string) {
		createUser()
	},
}

// listUsersCmd 列出用户命令
var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "列出用户",
	Long:  `列出系统中的用户`,
	Run: func(cmd *cobra.Command, args []string) {
		listUsers()
	},
}

// resetPasswordCmd 重置用户密码命令
var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password [username]",
	Short: "重置用户密码",
	Long:  `重置指定用户的密码，当前登录会话随之失效`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resetUserPassword(args[0])
	},
}

func init() {
	userCmd.AddCommand(createUserCmd)
	userCmd.AddCommand(listUsersCmd)
	userCmd.AddCommand(resetPasswordCmd)

	rootCmd.AddCommand(userCmd)
}

// newCLIUserService 命令行使用的用户服务，只在会话存储为redis时同步吊销会话
func newCLIUserService() (*service.UserService, error) {
	cfg := config.GlobalConfig
	tokens, err := auth.NewTokenManager(&cfg.JWT)
	if err != nil {
		return nil, err
	}

	var sessions auth.SessionStore
	if cfg.Session.Enabled && cfg.Session.Store == "redis" {
		sessions = auth.NewRedisSessionStore(database.GetRedis())
	}
	return service.NewUserService(database.GetDB(), tokens, sessions, nil), nil
}

// readPassword 读取两次密码并确认一致
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %v", err)
	}
	fmt.Println()

	fmt.Print("请确认密码: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("读取确认密码失败: %v", err)
	}
	fmt.Println()

	if string(passwordBytes) != string(confirmBytes) {
		return "", fmt.Errorf("两次输入的密码不一致")
	}
	return string(passwordBytes), nil
}

// createUser 创建用户
func createUser() {
	mustInitialize()

	userService, err := newCLIUserService()
	if err != nil {
		fmt.Printf("初始化用户服务失败: %v\n", err)
		return
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("请输入用户名: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("请输入昵称(可留空): ")
	nickname, _ := reader.ReadString('\n')
	nickname = strings.TrimSpace(nickname)

	password, err := readPassword("请输入密码: ")
	if err != nil {
		fmt.Println(err)
		return
	}

	user, err := userService.CreateUser(context.Background(), username, password, nickname)
	if err != nil {
		fmt.Printf("创建用户失败: %v\n", err)
		return
	}

	fmt.Printf("用户创建成功！\n")
	fmt.Printf("ID: %d\n", user.ID)
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("昵称: %s\n", user.Nickname)
}

// listUsers 列出用户
func listUsers() {
	mustInitialize()

	userService, err := newCLIUserService()
	if err != nil {
		fmt.Printf("初始化用户服务失败: %v\n", err)
		return
	}

	users, err := userService.ListUsers(context.Background())
	if err != nil {
		fmt.Printf("查询用户列表失败: %v\n", err)
		return
	}

	fmt.Printf("%-5s %-20s %-20s %-20s %-20s %-16s\n",
		"ID", "用户名", "昵称", "创建时间", "最后登录", "登录IP")
	fmt.Println(strings.Repeat("-", 100))

	for _, user := range users {
		lastLogin := "从未登录"
		if user.LastLoginAt != nil {
			lastLogin = user.LastLoginAt.Format("2006-01-02 15:04")
		}

		fmt.Printf("%-5d %-20s %-20s %-20s %-20s %-16s\n",
			user.ID, user.Username, user.Nickname,
			user.CreatedAt.Format("2006-01-02 15:04"), lastLogin, user.LastLoginIP)
	}
}

// resetUserPassword 重置用户密码
func resetUserPassword(username string) {
	mustInitialize()

	userService, err := newCLIUserService()
	if err != nil {
		fmt.Printf("初始化用户服务失败: %v\n", err)
		return
	}

	password, err := readPassword("请输入新密码: ")
	if err != nil {
		fmt.Println(err)
		return
	}

	if err := userService.ResetPassword(context.Background(), username, password); err != nil {
		fmt.Printf("重置密码失败: %v\n", err)
		return
	}

	fmt.Printf("用户 %s 的密码重置成功！\n", username)
}
