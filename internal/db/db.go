package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 描述数据库连接方式。URL 非空时使用 postgres，否则使用 sqlite 文件。
type Options struct {
	URL    string
	Path   string
	Logger logger.Interface
}

// Open 建立数据库连接并执行自动迁移。
// Path 为空时回退到默认值 habitlog.db。
func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		// 唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey，供派发锁判断
		TranslateError: true,
	}
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}

	var dialector gorm.Dialector
	if url := strings.TrimSpace(opts.URL); url != "" {
		dialector = postgres.Open(url)
	} else {
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			path = "habitlog.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(SQLiteDSN(path))
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

func models() []any {
	return []any{
		&User{},
		&Habit{},
		&HabitCompletion{},
		&EmailDispatchLog{},
		&Note{},
	}
}

// Migrate 为核心模型创建表与索引
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models()...)
}

// MissingTables 返回尚未迁移的核心表名，供健康检查判断库结构是否就绪
func MissingTables(gdb *gorm.DB) ([]string, error) {
	missing := []string{}
	migrator := gdb.Migrator()
	for _, model := range models() {
		if migrator.HasTable(model) {
			continue
		}
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		missing = append(missing, stmt.Schema.Table)
	}
	return missing, nil
}

// SQLiteDSN 为 sqlite 路径开启外键约束，保证级联删除生效
func SQLiteDSN(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + "_foreign_keys=on"
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
