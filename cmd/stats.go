package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/database"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// statsCmd 统计命令
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "统计信息命令",
	Long:  `显示分类、网站、用户等统计信息`,
}

// systemStatsCmd 系统统计命令
var systemStatsCmd = &cobra.Command{
	Use:   "system",
	Short: "系统统计信息",
	Long:  `显示系统整体统计信息`,
	Run: func(cmd *cobra.Command, args []string) {
		showSystemStats()
	},
}

// siteStatsCmd 网站统计命令
var siteStatsCmd = &cobra.Command{
	Use:   "sites",
	Short: "网站统计信息",
	Long:  `显示访问最多的网站和各分类的网站数量`,
	Run: func(cmd *cobra.Command, args []string) {
		showSiteStats()
	},
}

// dbStatusCmd 数据库状态命令
var dbStatusCmd = &cobra.Command{
	Use:   "db-status",
	Short: "数据库状态",
	Long:  `显示数据库、Redis与Elasticsearch连接状态`,
	Run: func(cmd *cobra.Command, args []string) {
		showDatabaseStatus()
	},
}

func init() {
	statsCmd.AddCommand(systemStatsCmd)
	statsCmd.AddCommand(siteStatsCmd)
	statsCmd.AddCommand(dbStatusCmd)

	rootCmd.AddCommand(statsCmd)
}

// systemStats 系统计数
type systemStats struct {
	Users          int64
	Categories     int64
	RootCategories int64
	Sites          int64
	Visits         int64
	TodaySites     int64
}

// collectSystemStats 统计各表数量
func collectSystemStats(db *gorm.DB, now time.Time) (*systemStats, error) {
	var stats systemStats
	if err := db.Model(&model.User{}).Count(&stats.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Category{}).Count(&stats.Categories).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Category{}).Where("parent_id IS NULL").Count(&stats.RootCategories).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Site{}).Count(&stats.Sites).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Site{}).Select("COALESCE(SUM(visit_count), 0)").Scan(&stats.Visits).Error; err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&model.Site{}).Where("created_at >= ?", today).Count(&stats.TodaySites).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// topSite 访问排行
type topSite struct {
	ID         uint
	Name       string
	URL        string
	VisitCount int64
}

// categorySiteCount 分类网站数量
type categorySiteCount struct {
	Name  string
	Count int64
}

// topVisitedSites 访问最多的网站
func topVisitedSites(db *gorm.DB, limit int) ([]topSite, error) {
	var sites []topSite
	err := db.Model(&model.Site{}).
		Select("id, name, url, visit_count").
		Order("visit_count DESC, id").
		Limit(limit).
		Scan(&sites).Error
	return sites, err
}

// siteCountByCategory 每个分类直接包含的网站数量
func siteCountByCategory(db *gorm.DB) ([]categorySiteCount, error) {
	var counts []categorySiteCount
	err := db.Table("categories").
		Select("categories.name AS name, COUNT(category_sites.site_id) AS count").
		Joins("LEFT JOIN category_sites ON category_sites.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("count DESC, categories.id").
		Scan(&counts).Error
	return counts, err
}

// showSystemStats 显示系统统计信息
func showSystemStats() {
	mustInitialize()

	stats, err := collectSystemStats(database.GetDB(), time.Now())
	if err != nil {
		fmt.Printf("统计失败: %v\n", err)
		return
	}

	fmt.Println("=== 系统统计信息 ===")
	fmt.Printf("用户总数: %d\n", stats.Users)
	fmt.Printf("分类总数: %d (根分类: %d)\n", stats.Categories, stats.RootCategories)
	fmt.Printf("网站总数: %d\n", stats.Sites)
	fmt.Printf("累计访问: %d\n", stats.Visits)
	fmt.Printf("今日新增网站: %d\n", stats.TodaySites)
}

// showSiteStats 显示网站统计信息
func showSiteStats() {
	mustInitialize()

	db := database.GetDB()

	fmt.Println("=== 网站统计信息 ===")

	sites, err := topVisitedSites(db, 10)
	if err != nil {
		fmt.Printf("查询访问排行失败: %v\n", err)
		return
	}
	fmt.Println("访问最多网站 (前10):")
	for i, site := range sites {
		fmt.Printf("%d. %s (%s, 访问: %d)\n", i+1, site.Name, site.URL, site.VisitCount)
	}

	counts, err := siteCountByCategory(db)
	if err != nil {
		fmt.Printf("查询分类统计失败: %v\n", err)
		return
	}
	fmt.Println("\n分类网站数量:")
	for _, count := range counts {
		fmt.Printf("- %s: %d\n", count.Name, count.Count)
	}
}

// showDatabaseStatus 显示数据库状态
func showDatabaseStatus() {
	mustInitialize()

	cfg := config.GlobalConfig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fmt.Println("=== 数据库状态 ===")

	sqlDB, err := database.GetDB().DB()
	if err != nil {
		fmt.Printf("数据库(%s): 连接失败 - %v\n", cfg.Database.Type, err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		fmt.Printf("数据库(%s): 连接失败 - %v\n", cfg.Database.Type, err)
	} else {
		stats := sqlDB.Stats()
		fmt.Printf("数据库(%s): 连接正常\n", cfg.Database.Type)
		fmt.Printf("  - 最大连接数: %d\n", stats.MaxOpenConnections)
		fmt.Printf("  - 当前连接数: %d\n", stats.OpenConnections)
		fmt.Printf("  - 空闲连接数: %d\n", stats.Idle)
		fmt.Printf("  - 使用中连接数: %d\n", stats.InUse)
	}

	if es := database.GetES(); es == nil {
		fmt.Println("Elasticsearch: 未启用")
	} else if res, err := es.Info(es.Info.WithContext(ctx)); err != nil {
		fmt.Printf("Elasticsearch: 连接失败 - %v\n", err)
	} else {
		res.Body.Close()
		fmt.Printf("Elasticsearch: 连接正常 - %s\n", res.Status())
	}

	if !redisWanted(cfg) {
		fmt.Println("Redis: 未启用")
		return
	}
	pong, err := database.GetRedis().Ping(ctx).Result()
	if err != nil {
		fmt.Printf("Redis: 连接失败 - %v\n", err)
		return
	}
	fmt.Printf("Redis: 连接正常 - %s\n", pong)
}
