// 本地联调用的演示数据脚本
//
// 创建一门包含两个模块、四个课时和一份测验的演示课程，并同步成就目录。
// 课程数据正常由课程编写服务写入，此脚本仅用于本地开发环境。
//
// 用法: go run scripts/seed_demo.go [configs]

package main

import (
	"context"
	"log"
	"os"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/pkg/database"
	"github.com/nehaa3012/LMS/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	if cfg.Server.Mode == "release" {
		log.Fatalf("release 模式下禁止写入演示数据")
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return seedCourse(tx)
	})
	if err != nil {
		log.Fatalf("写入演示课程失败: %v", err)
	}

	achievements := &service.AchievementService{
		DB:              db,
		AchievementRepo: repository.NewAchievementRepository(db),
	}
	n, err := achievements.SyncCatalog(context.Background(), cfg.Gamification.AchievementsFile)
	if err != nil {
		log.Fatalf("同步成就目录失败: %v", err)
	}
	log.Printf("完成！成就目录共 %d 项", n)
}

func seedCourse(tx *gorm.DB) error {
	course := &model.Course{
		Title:       "Go 入门",
		Description: "演示课程",
	}
	if err := tx.Create(course).Error; err != nil {
		return err
	}

	var lessons []model.Lesson
	for m, titles := range [][]string{{"环境搭建", "基础语法"}, {"并发", "错误处理"}} {
		module := &model.CourseModule{CourseID: course.ID, Title: titles[0] + "模块", Position: m + 1}
		if err := tx.Create(module).Error; err != nil {
			return err
		}
		for i, title := range titles {
			lesson := model.Lesson{ModuleID: module.ID, Title: title, Position: i + 1, Duration: 900}
			if err := tx.Create(&lesson).Error; err != nil {
				return err
			}
			lessons = append(lessons, lesson)
		}
	}

	quiz := &model.Quiz{LessonID: lessons[1].ID, Title: "基础语法测验", PassingScore: 60}
	if err := tx.Create(quiz).Error; err != nil {
		return err
	}
	questions := []model.Question{
		{QuizID: quiz.ID, Position: 1, Text: "声明并初始化变量的短语法是？", Options: datatypes.JSONSlice[string]{":=", "=", "=="}, CorrectAnswer: ":="},
		{QuizID: quiz.ID, Position: 2, Text: "切片的零值是？", Options: datatypes.JSONSlice[string]{"nil", "[]", "0"}, CorrectAnswer: "nil"},
		{QuizID: quiz.ID, Position: 3, Text: "启动 goroutine 的关键字是？", Options: datatypes.JSONSlice[string]{"go", "async", "spawn"}, CorrectAnswer: "go"},
	}
	if err := tx.Create(&questions).Error; err != nil {
		return err
	}

	log.Printf("演示课程已创建: id=%d lessons=%d quiz=%d", course.ID, len(lessons), quiz.ID)
	return nil
}
