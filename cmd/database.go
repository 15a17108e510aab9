package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/database"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/internal/search"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// 允许导入导出的表
var exportableTables = map[string]bool{
	model.User{}.TableName():         true,
	model.Category{}.TableName():     true,
	model.Site{}.TableName():         true,
	model.CategorySite{}.TableName(): true,
}

// databaseCmd 数据库管理命令
var databaseCmd = &cobra.Command{
	Use:   "db",
	Short: "数据库管理命令",
	Long:  `数据库管理相关的命令，包括导入导出、排序修复、索引同步`,
}

// exportCmd 导出表数据命令
// 示例：./startpage-api db export sites sites.json
var exportCmd = &cobra.Command{
	Use:   "export [table] [file]",
	Short: "导出表数据",
	Long:  `导出数据表到JSON文件，支持 users、categories、sites、category_sites`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		exportTable(args[0], args[1])
	},
}

// importCmd 导入表数据命令
// 示例：./startpage-api db import sites sites.json
var importCmd = &cobra.Command{
	Use:   "import [table] [file]",
	Short: "导入表数据",
	Long:  `从JSON文件导入数据到表，全部成功才提交`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		importTable(args[0], args[1])
	},
}

// compactCmd 修复排序命令
var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "修复排序值",
	Long:  `把每个分类范围内的排序值重新整理为从0开始的连续序列`,
	Run: func(cmd *cobra.Command, args []string) {
		compactSortOrders()
	},
}

// syncESCmd 同步ES数据命令
var syncESCmd = &cobra.Command{
	Use:   "sync-es",
	Short: "重建网站搜索索引",
	Long:  `清空Elasticsearch网站索引后写入全部网站`,
	Run: func(cmd *cobra.Command, args []string) {
		syncToElasticsearch()
	},
}

// initTablesCmd 初始化数据库表命令
var initTablesCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"init-tables"},
	Short:   "初始化数据库表",
	Long:    `初始化数据库表和Elasticsearch索引`,
	Run: func(cmd *cobra.Command, args []string) {
		initializeTables()
	},
}

func init() {
	databaseCmd.AddCommand(exportCmd)
	databaseCmd.AddCommand(importCmd)
	databaseCmd.AddCommand(compactCmd)
	databaseCmd.AddCommand(syncESCmd)
	databaseCmd.AddCommand(initTablesCmd)

	rootCmd.AddCommand(databaseCmd)
}

// exportRows 读取整张表
func exportRows(db *gorm.DB, tableName string) ([]map[string]interface{}, error) {
	if !exportableTables[tableName] {
		return nil, fmt.Errorf("不支持的表: %s", tableName)
	}
	var data []map[string]interface{}
	if err := db.Table(tableName).Find(&data).Error; err != nil {
		return nil, err
	}
	return data, nil
}

// importRows 在一个事务内写入全部记录
func importRows(db *gorm.DB, tableName string, data []map[string]interface{}) error {
	if !exportableTables[tableName] {
		return fmt.Errorf("不支持的表: %s", tableName)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range data {
			if err := tx.Table(tableName).Create(data[i]).Error; err != nil {
				return fmt.Errorf("第 %d 条记录导入失败: %w", i+1, err)
			}
		}
		return nil
	})
}

// exportTable 导出表数据
func exportTable(tableName, fileName string) {
	mustInitialize()

	data, err := exportRows(database.GetDB(), tableName)
	if err != nil {
		fmt.Printf("导出数据失败: %v\n", err)
		return
	}

	file, err := os.Create(fileName)
	if err != nil {
		fmt.Printf("创建文件失败: %v\n", err)
		return
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Printf("写入文件失败: %v\n", err)
		return
	}

	fmt.Printf("成功导出 %d 条记录到 %s\n", len(data), fileName)
}

// importTable 导入表数据
func importTable(tableName, fileName string) {
	mustInitialize()

	file, err := os.Open(fileName)
	if err != nil {
		fmt.Printf("打开文件失败: %v\n", err)
		return
	}
	defer file.Close()

	var data []map[string]interface{}
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		fmt.Printf("解析文件失败: %v\n", err)
		return
	}

	if err := importRows(database.GetDB(), tableName, data); err != nil {
		fmt.Printf("导入数据失败: %v\n", err)
		return
	}

	fmt.Printf("成功导入 %d 条记录到表 %s\n", len(data), tableName)
}

// compactSortOrders 修复分类和网站的排序值
func compactSortOrders() {
	mustInitialize()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.GetDB()
	categories, err := service.NewCategoryService(db, nil).CompactScopes(ctx)
	if err != nil {
		fmt.Printf("修复分类排序失败: %v\n", err)
		return
	}
	sites, err := service.NewSiteService(db, nil, nil, nil).CompactScopes(ctx)
	if err != nil {
		fmt.Printf("修复网站排序失败: %v\n", err)
		return
	}

	fmt.Printf("排序修复完成，分类范围: %d，网站范围: %d\n", categories, sites)
}

// syncToElasticsearch 重建网站索引
func syncToElasticsearch() {
	mustInitialize()

	es := database.GetES()
	if es == nil {
		fmt.Println("未启用Elasticsearch")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("开始同步网站到Elasticsearch...")

	index := search.NewSiteIndex(es, config.GlobalConfig.Elasticsearch.Index)
	count, err := service.NewSiteService(database.GetDB(), nil, index, nil).Reindex(ctx)
	if err != nil {
		fmt.Printf("同步网站到ES失败: %v\n", err)
		return
	}

	fmt.Printf("网站同步到Elasticsearch完成，共 %d 条\n", count)
}

// initializeTables 初始化数据库表
func initializeTables() {
	mustInitialize()
	fmt.Println("数据库表初始化成功")

	es := database.GetES()
	if es == nil {
		fmt.Println("未启用Elasticsearch，跳过索引初始化")
		return
	}

	index := search.NewSiteIndex(es, config.GlobalConfig.Elasticsearch.Index)
	if err := index.EnsureIndex(context.Background()); err != nil {
		fmt.Printf("初始化Elasticsearch索引失败: %v\n", err)
		return
	}
	fmt.Println("Elasticsearch索引初始化成功")
}
