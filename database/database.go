package database

import (
	"strings"

	"github.com/babelrelay/babelrelay/logging"
	"github.com/babelrelay/babelrelay/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var log *zap.SugaredLogger

func init() {
	log = logging.InitLogger()
}

func InitDB(path string) {
	var err error
	DB, err = Open(path)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
}

// Open connects to the sqlite database at path and migrates the schema.
// Cascading deletes (guild -> group -> channel -> message) rely on foreign
// keys, which sqlite leaves off by default; the DSN parameter enables them on
// every pooled connection.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		//Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Guild{},
		&models.TranslationGroup{},
		&models.Channel{},
		&models.Message{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
