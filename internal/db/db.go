package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
	"github.com/suPer8Hu/convo-platform/internal/files"
	"github.com/suPer8Hu/convo-platform/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates the schema for every table this module owns.
// The users table is included so fresh environments can seed owners, but
// rows in it are managed elsewhere.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&conversation.Role{},
		&conversation.Conversation{},
		&conversation.Version{},
		&conversation.Message{},
		&files.UploadedFile{},
		&activity.ActivityLog{},
	)
}
